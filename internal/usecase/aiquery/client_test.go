package aiquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/aivis/internal/domain"
)

func TestClient_Routes(t *testing.T) {
	gpt := &mockQuerier{out: domain.QueryOutput{Response: "gpt"}}
	claude := &mockQuerier{out: domain.QueryOutput{Response: "claude"}}
	c := New(time.Second).
		Register(domain.ModelChatGPT, gpt).
		Register(domain.ModelClaude, claude)

	got, err := c.Query(context.Background(), domain.ModelClaude, "best shoes", "acme.io sells shoes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Response != "claude" {
		t.Errorf("Response = %q, want claude", got.Response)
	}
	if claude.lastInput.Phrase != "best shoes" || claude.lastInput.DomainContext != "acme.io sells shoes" {
		t.Errorf("input = %+v", claude.lastInput)
	}
	if gpt.callCount() != 0 {
		t.Error("chatgpt should not be called")
	}

	models := c.Models()
	if len(models) != 2 || models[0] != domain.ModelChatGPT || models[1] != domain.ModelClaude {
		t.Errorf("Models() = %v", models)
	}
}

func TestClient_UnknownModel(t *testing.T) {
	_, err := New(0).Query(context.Background(), "grok", "p", "")
	if !errors.Is(err, domain.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestClient_DefaultTimeout(t *testing.T) {
	if New(0).Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %s, want %s", New(0).Timeout(), DefaultTimeout)
	}
}

func TestClient_TimeoutCancelsCall(t *testing.T) {
	slow := &mockQuerier{block: true}
	c := New(20 * time.Millisecond).Register(domain.ModelGemini, slow)

	start := time.Now()
	_, err := c.Query(context.Background(), domain.ModelGemini, "p", "")
	if !errors.Is(err, domain.ErrQueryTimeout) {
		t.Fatalf("expected ErrQueryTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("query was not cut at its deadline")
	}
}

func TestClient_ParentCancelIsNotTimeout(t *testing.T) {
	c := New(time.Minute).Register(domain.ModelGemini, &mockQuerier{block: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Query(ctx, domain.ModelGemini, "p", "")
	if errors.Is(err, domain.ErrQueryTimeout) {
		t.Fatal("caller cancellation must not be reported as a timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	c := New(0).
		Register(domain.ModelChatGPT, &mockQuerier{}).
		Register(domain.ModelClaude, &mockQuerier{healthErr: errors.New("401")})

	err := c.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected error from claude")
	}
	if got := err.Error(); got != "claude: 401" {
		t.Errorf("error = %q", got)
	}
}
