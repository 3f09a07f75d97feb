package slack

import (
	"strings"
	"testing"
	"unicode/utf8"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReportReadyMessage_AllPassed(t *testing.T) {
	input := ReportReadyInput{
		ScenarioName: "chaos-reboot",
		PassCount:    5,
		FailCount:    0,
	}
	blocks := BuildReportReadyMessage(input, "https://dash.example.com")

	require.Len(t, blocks, 2)

	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":white_check_mark:")
	assert.Contains(t, header.Text.Text, "chaos-reboot")
	assert.Contains(t, header.Text.Text, "5 passed, 0 failed")

	action := blocks[1].(*goslack.ActionBlock)
	btn := action.Elements.ElementSet[0].(*goslack.ButtonBlockElement)
	assert.Equal(t, "View Report", btn.Text.Text)
	assert.Equal(t, "https://dash.example.com", btn.URL)
}

func TestBuildReportReadyMessage_WithFailuresAndExcerpt(t *testing.T) {
	input := ReportReadyInput{
		ScenarioName:  "chaos-network",
		PassCount:     2,
		FailCount:     1,
		ReportExcerpt: "task 3: FAIL (timeout)",
	}
	blocks := BuildReportReadyMessage(input, "https://dash.example.com")

	require.Len(t, blocks, 3)

	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":x:")
	assert.Contains(t, header.Text.Text, "2 passed, 1 failed")

	excerpt := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, excerpt.Text.Text, "task 3: FAIL (timeout)")
}

func TestBuildReportReadyMessage_NoDashboardURLOmitsButton(t *testing.T) {
	blocks := BuildReportReadyMessage(ReportReadyInput{ScenarioName: "x", PassCount: 1}, "")
	require.Len(t, blocks, 1)
}

func TestTruncateForSlack(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", truncateForSlack("hello"))
	})

	t.Run("exact limit unchanged", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength)
		assert.Equal(t, text, truncateForSlack(text))
	})

	t.Run("over limit truncated", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength+100)
		result := truncateForSlack(text)
		assert.True(t, len(result) < len(text))
		assert.Contains(t, result, "truncated")
	})

	t.Run("multi-byte runes not split", func(t *testing.T) {
		text := strings.Repeat("🔥", maxBlockTextLength+10)
		result := truncateForSlack(text)
		assert.Contains(t, result, "truncated")
		assert.True(t, utf8.ValidString(result), "result should be valid UTF-8")
		prefix := strings.Split(result, "\n\n_...")[0]
		assert.Equal(t, maxBlockTextLength, utf8.RuneCountInString(prefix))
	})
}
