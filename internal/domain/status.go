package domain

import "time"

// StatusSnapshot is the last lifecycle state written to disk. It lets
// `modelhost status --offline` answer without a running coordinator.
type StatusSnapshot struct {
	State     string    `json:"state"`
	Progress  int       `json:"progress"`
	Reason    string    `json:"reason,omitempty"`
	Attempt   string    `json:"attempt,omitempty"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEmpty returns true if no snapshot has been recorded.
func (s StatusSnapshot) IsEmpty() bool {
	return s.State == ""
}
