package trace_test

import (
	"context"
	"strings"
	"testing"

	"github.com/bdobrica/opsbot/common/trace"
)

func TestGenerateID(t *testing.T) {
	id := trace.GenerateID()
	if !strings.HasPrefix(id, "t_") {
		t.Errorf("GenerateID = %q, want t_ prefix", id)
	}
	if len(id) != 2+32 {
		t.Errorf("GenerateID = %q, want 32 hex characters after the prefix", id)
	}
	if trace.GenerateID() == id {
		t.Error("IDs should be unique")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := trace.FromContext(ctx); got != "" {
		t.Errorf("FromContext on a bare context = %q, want empty", got)
	}

	ctx = trace.WithID(ctx, "t_abc")
	if got := trace.FromContext(ctx); got != "t_abc" {
		t.Errorf("FromContext = %q", got)
	}
}
