package render

import (
	"fmt"

	"github.com/bft-labs/modelhost/pkg/transport"
)

// LabelDisplay is how a label is shown to people.
type LabelDisplay struct {
	Text        string
	Description string
}

var labelDisplays = map[transport.Label]LabelDisplay{
	transport.LabelAIGenerated: {
		Text:        "AI Generated",
		Description: "This text shows strong patterns typical of AI generation",
	},
	transport.LabelHumanWritten: {
		Text:        "Human Written",
		Description: "This text appears to be written by a human",
	},
	transport.LabelUncertain: {
		Text:        "Uncertain",
		Description: "Could not determine with high confidence, likely AI-generated",
	},
}

// DisplayFor returns the display for l. Unknown labels show as uncertain.
func DisplayFor(l transport.Label) LabelDisplay {
	if d, ok := labelDisplays[l]; ok {
		return d
	}
	return labelDisplays[transport.LabelUncertain]
}

// Classification formats a result as a styled title line and a detail line.
func Classification(res *transport.Classification) string {
	if res == nil {
		return ""
	}
	d := DisplayFor(res.Label)
	detail := d.Description
	if res.Confidence != nil {
		detail = fmt.Sprintf("%s • %d%% confidence", detail, *res.Confidence)
	}
	return labelStyle(res.Label).Render(d.Text) + "\n" + mutedStyle.Render(detail)
}
