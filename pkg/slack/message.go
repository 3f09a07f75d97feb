package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

// BuildReportReadyMessage creates Block Kit blocks announcing a stopped
// scenario's report, with pass/fail tallies and a dashboard link.
func BuildReportReadyMessage(input ReportReadyInput, dashboardURL string) []goslack.Block {
	emoji := ":white_check_mark:"
	if input.FailCount > 0 {
		emoji = ":x:"
	}

	headerText := fmt.Sprintf("%s *%s finished* — %d passed, %d failed",
		emoji, input.ScenarioName, input.PassCount, input.FailCount)

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
	}

	if input.ReportExcerpt != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(input.ReportExcerpt), false, false),
			nil, nil,
		))
	}

	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "",
			goslack.NewTextBlockObject(goslack.PlainTextType, "View Report", false, false))
		btn.URL = dashboardURL
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}

	return blocks
}

func truncateForSlack(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated — full report via `chaosbench-ctl report`)_"
}
