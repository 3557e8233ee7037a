package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bft-labs/modelhost/internal/client"
)

const barWidth = 30

// StatusText is the plain text for a view.
func StatusText(v client.View) string {
	switch v.Phase {
	case client.PhaseLoading:
		if v.Progress >= 100 {
			return "Finalizing..."
		}
		return fmt.Sprintf("Loading model... %d%%", v.Progress)
	case client.PhaseReady:
		return "Model ready • You can analyze text now"
	case client.PhaseFailed:
		return "Failed to load model: " + v.Reason
	case client.PhaseStalled:
		return "No ready signal yet; the model may still be loading"
	default:
		return "Initializing model..."
	}
}

// Bar draws a fixed-width progress bar.
func Bar(progress int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := progress * barWidth / 100
	return barStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", barWidth-filled))
}

// LineRenderer writes one line per distinct status. It implements
// client.Renderer.
type LineRenderer struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

// NewLineRenderer creates a renderer writing to w.
func NewLineRenderer(w io.Writer) *LineRenderer {
	return &LineRenderer{w: w}
}

// Render implements client.Renderer.
func (r *LineRenderer) Render(v client.View) {
	text := StatusText(v)

	r.mu.Lock()
	defer r.mu.Unlock()
	if text == r.last {
		return
	}
	r.last = text
	fmt.Fprintln(r.w, phaseStyle(v.Phase).Render(text))
}
