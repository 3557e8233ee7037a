package client

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// MinTextLength is the shortest text worth classifying.
const MinTextLength = 20

// ValidateText checks classification input before it is sent.
func ValidateText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.ErrEmptyText
	}
	if utf8.RuneCountInString(trimmed) < MinTextLength {
		return domain.ErrTextTooShort
	}
	return nil
}

// Commands are the one-shot client requests.
type Commands struct {
	link Link
}

// NewCommands creates commands over link.
func NewCommands(link Link) *Commands {
	return &Commands{link: link}
}

// Status asks for the coordinator's lifecycle state.
func (c *Commands) Status(ctx context.Context) (transport.Response, error) {
	return c.link.Request(ctx, transport.Message{Type: transport.TypeStatus})
}

// Classify validates text and asks the coordinator to classify it.
func (c *Commands) Classify(ctx context.Context, text string) (*transport.Classification, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}
	resp, err := c.link.Request(ctx, transport.Message{Type: transport.TypeClassify, Text: strings.TrimSpace(text)})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, domain.FromReason(resp.Error)
	}
	if resp.Result == nil {
		return nil, &domain.RemoteError{Message: "coordinator returned no result"}
	}
	return resp.Result, nil
}

// Reset discards the current model state and starts a new load.
func (c *Commands) Reset(ctx context.Context) (transport.Response, error) {
	return c.link.Request(ctx, transport.Message{Type: transport.TypeReset})
}
