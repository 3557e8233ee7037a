// Package render draws the client view and classification results for the
// terminal.
package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bft-labs/modelhost/internal/client"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// Colors
var (
	greenColor  = lipgloss.Color("42")
	yellowColor = lipgloss.Color("214")
	redColor    = lipgloss.Color("196")
	blueColor   = lipgloss.Color("39")
	grayColor   = lipgloss.Color("245")
)

var (
	mutedStyle = lipgloss.NewStyle().Foreground(grayColor)
	barStyle   = lipgloss.NewStyle().Foreground(blueColor)
	titleStyle = lipgloss.NewStyle().Bold(true)
)

func phaseStyle(p client.Phase) lipgloss.Style {
	switch p {
	case client.PhaseLoading:
		return lipgloss.NewStyle().Foreground(blueColor)
	case client.PhaseReady:
		return lipgloss.NewStyle().Foreground(greenColor).Bold(true)
	case client.PhaseFailed:
		return lipgloss.NewStyle().Foreground(redColor).Bold(true)
	case client.PhaseStalled:
		return lipgloss.NewStyle().Foreground(yellowColor)
	default:
		return lipgloss.NewStyle()
	}
}

func labelStyle(l transport.Label) lipgloss.Style {
	switch l {
	case transport.LabelAIGenerated:
		return lipgloss.NewStyle().Foreground(redColor).Bold(true)
	case transport.LabelHumanWritten:
		return lipgloss.NewStyle().Foreground(greenColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(yellowColor).Bold(true)
	}
}
