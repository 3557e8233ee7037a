package client

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bft-labs/modelhost/internal/domain"
	"github.com/bft-labs/modelhost/pkg/transport"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", domain.ErrEmptyText},
		{"blank", "   \n\t", domain.ErrEmptyText},
		{"short", "too short", domain.ErrTextTooShort},
		{"padded short", "   nineteen chars!!   ", domain.ErrTextTooShort},
		{"exact", strings.Repeat("a", MinTextLength), nil},
		{"long", "This text is comfortably longer than twenty characters.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateText(tt.text); !errors.Is(err, tt.want) {
				t.Errorf("ValidateText(%q) = %v, want %v", tt.text, err, tt.want)
			}
		})
	}
}

func TestCommands_Classify(t *testing.T) {
	conf := 90
	link := &fakeLink{classify: transport.Response{
		Success: true,
		Result:  &transport.Classification{Label: transport.LabelHumanWritten, Confidence: &conf, Raw: "human_written"},
	}}
	cmds := NewCommands(link)

	res, err := cmds.Classify(context.Background(), "This text is comfortably longer than twenty characters.")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.Label != transport.LabelHumanWritten {
		t.Errorf("Label = %s", res.Label)
	}

	if _, err := cmds.Classify(context.Background(), "short"); !errors.Is(err, domain.ErrTextTooShort) {
		t.Errorf("Classify(short) error = %v", err)
	}
	if link.count(transport.TypeClassify) != 1 {
		t.Errorf("invalid text reached the coordinator")
	}
}

func TestCommands_ClassifyNotReady(t *testing.T) {
	link := &fakeLink{classify: transport.Failure(domain.ErrNotReady.Error())}
	cmds := NewCommands(link)

	_, err := cmds.Classify(context.Background(), "This text is comfortably longer than twenty characters.")
	if !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("Classify() error = %v, want ErrNotReady", err)
	}
}
