package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/backend"
	"github.com/chaosbench/chaosbench/pkg/compiler"
	"github.com/chaosbench/chaosbench/pkg/scenario"
	"github.com/chaosbench/chaosbench/pkg/store"
	"github.com/gin-gonic/gin"
)

// Handler is the coordinator's catch-all proxy route, grounded directly
// on original_source/server/src/controllers/proxy.rs's proxy_request:
// identify the caller, consult its next task, forward upstream to
// remote_server with the authority rewritten, and record task completion
// around the forwarded call.
type Handler struct {
	Store  *store.Store
	Client *http.Client
	Log    *slog.Logger
}

func NewHandler(st *store.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Store: st, Client: http.DefaultClient, Log: log}
}

// Handle is the gin catch-all handler for every route the API does not
// register itself.
func (h *Handler) Handle(c *gin.Context) {
	agent, ok := h.Store.ResolveBySourceIP(c.ClientIP())
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	body, _ := io.ReadAll(c.Request.Body)
	fullURL := c.Request.URL.String()

	current, hasScenario := h.Store.Current()

	if task, ok := h.Store.PeekTask(agent.StableID); ok && task.Action == action.HttpRequest {
		h.runRequestScript(c, h.resolveTask(task, current, hasScenario, agent.OS), agent.StableID, body, fullURL)
	}

	target := c.Request.URL.String()
	if hasScenario && current.HasRemote {
		target = rewriteAuthority(current.RemoteServer, c.Request)
	}

	upstream, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, bytes.NewReader(body))
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	copyHeaders(c.Request.Header, upstream.Header)

	resp, err := h.Client.Do(upstream)
	if err != nil {
		if task, ok := h.Store.PeekTask(agent.StableID); ok && task.Action == action.HttpResponse {
			h.Store.SetTaskResult(completionFor(task, agent.StableID, scenario.Failure(err.Error())))
		}
		c.Status(http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	status := resp.StatusCode
	headers := cloneHeaders(resp.Header)

	if task, ok := h.Store.PeekTask(agent.StableID); ok && task.Action == action.HttpResponse {
		respBody, status, headers = h.runResponseScript(c, h.resolveTask(task, current, hasScenario, agent.OS), agent.StableID, respBody, status, headers, fullURL, resp.Header.Get("Content-Type"))
	}

	for k, v := range headers {
		c.Header(k, v)
	}
	c.Data(status, resp.Header.Get("Content-Type"), respBody)
}

func (h *Handler) runRequestScript(c *gin.Context, task scenario.AgentTask, agentID string, body []byte, fullURL string) {
	scriptText := scriptParam(task)
	scope := Scope{
		"headers":  headerMap(c.Request.Header),
		"full_url": fullURL,
	}
	if isJSON(c.GetHeader("Content-Type")) {
		var v interface{}
		if json.Unmarshal(body, &v) == nil {
			scope["body"] = v
		}
	}

	outcome := h.evaluate(c, scriptText, scope)
	h.Store.SetTaskResult(completionFor(task, agentID, outcome))
}

func (h *Handler) runResponseScript(c *gin.Context, task scenario.AgentTask, agentID string, body []byte, status int, headers map[string]string, fullURL, contentType string) ([]byte, int, map[string]string) {
	scriptText := scriptParam(task)
	scope := Scope{
		"headers":      headers,
		"status_code":  status,
		"content_type": contentType,
		"full_url":     fullURL,
	}
	if isJSON(contentType) {
		var v interface{}
		if json.Unmarshal(body, &v) == nil {
			scope["body"] = v
		}
	}

	outcome := h.evaluate(c, scriptText, scope)
	h.Store.SetTaskResult(completionFor(task, agentID, outcome))

	if v, ok := scope["status_code"]; ok {
		if i, ok := v.(int); ok {
			status = i
		}
	}
	if v, ok := scope["headers"]; ok {
		if m, ok := v.(map[string]string); ok {
			headers = m
		}
	}
	if v, ok := scope["body"]; ok && isJSON(contentType) {
		if data, err := json.Marshal(v); err == nil {
			body = data
		}
	}
	return body, status, headers
}

func (h *Handler) evaluate(c *gin.Context, scriptText string, scope Scope) scenario.Outcome {
	if scriptText == "" {
		return scenario.Failure("no script configured for Http task")
	}
	ok, err := Eval(c.Request.Context(), scriptText, scope)
	if err != nil {
		return scenario.Failure(err.Error())
	}
	if !ok {
		return scenario.Failure("script returned false")
	}
	return scenario.Success()
}

// resolveTask merges the current scenario's parameters/variables onto
// task the same way an agent's resolveEffective would — an Http::* task
// is completed here by the proxy, never by an agent, so nothing else ever
// performs this merge for it.
func (h *Handler) resolveTask(task scenario.AgentTask, current compiler.Compiled, hasScenario bool, os string) scenario.AgentTask {
	if !hasScenario {
		return task
	}
	kind, params := scenario.ResolveEffective(task, current.Scenario.Parameters, current.Scenario.Variables, current.Scenario.Actions, scenario.OS(os))
	task.Action = kind
	task.Parameters = params
	return task
}

func scriptParam(task scenario.AgentTask) string {
	if task.Parameters == nil {
		return ""
	}
	v, ok := task.Parameters.Get(backend.ParamScript)
	if !ok {
		return ""
	}
	s, _ := v.TryString()
	return s
}

func completionFor(task scenario.AgentTask, agentID string, outcome scenario.Outcome) scenario.AgentTaskResult {
	result := scenario.ResultFromTask(task)
	result.AgentID = agentID
	result.Outcome = outcome
	return result
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

func headerMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func cloneHeaders(h http.Header) map[string]string {
	return headerMap(h)
}

func copyHeaders(src http.Header, dst http.Header) {
	for name, values := range src {
		if strings.EqualFold(name, "Host") {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// rewriteAuthority keeps the inbound request's scheme, path, and query
// but targets remoteServer's host (original_source's generate_client
// authority rewrite).
func rewriteAuthority(remoteServer string, req *http.Request) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + remoteServer + req.URL.RequestURI()
}
