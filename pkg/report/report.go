// Package report implements the report renderer: a Markdown document over
// the coordinator store's current scenario and per-agent results.
// Grounded on original_source/server/src/services/production.rs's
// generate_report and original_source/common/src/api/mod.rs's
// TestingReport markdown builder, reimplemented over a strings.Builder.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chaosbench/chaosbench/pkg/compiler"
	"github.com/chaosbench/chaosbench/pkg/store"
)

const (
	glyphOK      = "✅" // task result present and Ok
	glyphErr     = "❌" // task result present and Err
	glyphPending = "\U0001F554" // no result reported yet
)

var tableHeader = []string{"ID", "State", "Action", "Agent", "Hostname", "Error"}

// ErrNoScenario is returned by Render when the store has no current
// scenario to report on.
type ErrNoScenario struct{}

func (ErrNoScenario) Error() string { return "report: no scenario is current" }

// Render builds the Markdown report for st's current scenario: a
// top-level heading, one collapsible section per scene with a (task_id,
// state, action, agent, hostname, error) table, and a Resume k/N glyph
// line after each scene.
func Render(st *store.Store) (string, error) {
	current, ok := st.Current()
	if !ok {
		return "", ErrNoScenario{}
	}

	agents := st.ListAgents()
	sort.Slice(agents, func(i, j int) bool { return agents[i].StableID < agents[j].StableID })
	total := len(agents)

	b := &builder{}
	b.h1(current.Name)

	var sceneOK map[string]bool
	lastScene := int64(-1)

	for _, task := range current.Tasks {
		if int64(task.SceneID) != lastScene {
			if lastScene >= 0 {
				b.closeDetails()
				b.resumeLine(len(sceneOK), total)
			}
			b.h2(sceneName(current, task.SceneID))
			b.openDetails()
			b.tableHeader(tableHeader)
			sceneOK = allAgentsOK(agents)
			lastScene = int64(task.SceneID)
		}

		for _, agent := range agents {
			state, glyph, errMsg := rowState(st, agent.StableID, task.ID)
			if state != glyphOK {
				delete(sceneOK, agent.StableID)
			}
			b.tableRow([]string{
				fmt.Sprintf("%d", task.ID),
				glyph,
				task.Action.String(),
				agent.StableID,
				agent.Hostname,
				errMsg,
			})
		}
	}

	if lastScene >= 0 {
		b.closeDetails()
		b.resumeLine(len(sceneOK), total)
	}

	return b.String(), nil
}

func sceneName(c compiler.Compiled, sceneID uint32) string {
	if name, ok := c.SceneNames[sceneID]; ok {
		return name
	}
	return "Unknown scene"
}

func allAgentsOK(agents []store.Registration) map[string]bool {
	out := make(map[string]bool, len(agents))
	for _, a := range agents {
		out[a.StableID] = true
	}
	return out
}

// rowState looks up agentID's reported result for taskID and returns its
// table glyph, the raw state marker (used to update sceneOK), and any
// error message.
func rowState(st *store.Store, agentID string, taskID uint32) (state, glyph, errMsg string) {
	scene, ok := st.SceneStateFor(agentID)
	if !ok {
		return glyphPending, glyphPending, "Execution Pending"
	}
	result, ok := scene.Results[taskID]
	if !ok {
		return glyphPending, glyphPending, "Execution Pending"
	}
	if result.Outcome.Ok {
		return glyphOK, glyphOK, ""
	}
	return glyphErr, glyphErr, result.Outcome.Message
}

// builder accumulates the Markdown document, mirroring TestingReport's
// add_h1/add_h2/add_content/add_table_header/add_table_row helpers.
type builder struct {
	sb strings.Builder
}

func (b *builder) h1(s string) { fmt.Fprintf(&b.sb, "# %s\n", s) }
func (b *builder) h2(s string) { fmt.Fprintf(&b.sb, "## %s\n", s) }

func (b *builder) openDetails() {
	b.sb.WriteString("<details><summary>Show test</summary>\n\n")
}

func (b *builder) closeDetails() {
	b.sb.WriteString("\n</details>\n\n")
}

func (b *builder) tableHeader(cols []string) {
	b.sb.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	b.sb.WriteString(strings.Repeat("-----|", len(cols)) + "\n")
}

func (b *builder) tableRow(cols []string) {
	b.sb.WriteString("| " + strings.Join(cols, " | ") + " |\n")
}

// resumeLine reports k of n agents whose every task in the just-closed
// scene was ok.
func (b *builder) resumeLine(k, n int) {
	glyph := glyphErr
	if k == n {
		glyph = glyphOK
	}
	fmt.Fprintf(&b.sb, "**Resume %d/%d %s**\n\n", k, n, glyph)
}

func (b *builder) String() string { return b.sb.String() }
