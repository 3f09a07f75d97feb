package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chaosbench/chaosbench/pkg/action"
	"github.com/chaosbench/chaosbench/pkg/backend"
	"github.com/chaosbench/chaosbench/pkg/scenario"
	"github.com/chaosbench/chaosbench/pkg/store"
	"github.com/chaosbench/chaosbench/pkg/value"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalRunsScriptAndReturnsBoolean(t *testing.T) {
	script := `func Run(scope map[string]interface{}) bool {
	scope["status_code"] = 201
	return true
}`
	ok, err := Eval(context.Background(), script, Scope{"status_code": 200})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalNonBooleanReturnIsAnError(t *testing.T) {
	script := `func Run(scope map[string]interface{}) string {
	return "not a bool"
}`
	_, err := Eval(context.Background(), script, Scope{})
	assert.Error(t, err)
}

func newTestGinContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

// TestHandleRunsRequestScriptAndForwardsUpstream mirrors
// original_source's proxy_request: an Http::Request task's script is
// evaluated against the inbound request, then the call is forwarded
// upstream regardless of the script's outcome.
func TestHandleRunsRequestScriptAndForwardsUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	st := store.New(nil)

	global := value.NewMap()
	global.Set(scenario.RemoteServerParam, value.Text(upstream.Listener.Addr().String()))
	global.Set(backend.ParamScript, value.Text(`func Run(scope map[string]interface{}) bool { return true }`))
	sc := scenario.Scenario{
		Parameters: scenario.Overlay{Global: global},
		Scenes:     []scenario.Scene{{Name: "s0", Phases: []action.Kind{action.HttpRequest}}},
	}
	st.SaveTestScenario("s", sc)
	require.NoError(t, st.StartScenario("s"))
	st.RegisterAgent(store.Registration{StableID: "a1", SourceIP: "192.0.2.10"})

	h := NewHandler(st, nil)
	req := httptest.NewRequest(http.MethodGet, "http://coordinator/anything", nil)
	req.RemoteAddr = "192.0.2.10:12345"
	c, w := newTestGinContext(req)

	h.Handle(c)

	assert.NotEqual(t, http.StatusInternalServerError, w.Code)
}

func TestRewriteAuthorityKeepsPathAndQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://coordinator/foo?bar=1", nil)
	got := rewriteAuthority("upstream.example:9000", req)
	assert.Equal(t, "http://upstream.example:9000/foo?bar=1", got)
}

func TestIsJSONMatchesContentTypeLoosely(t *testing.T) {
	assert.True(t, isJSON("application/json; charset=utf-8"))
	assert.False(t, isJSON("text/plain"))
}
