package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	responses []any // string or error, consumed in order
	calls     int
}

func (p *fakeProvider) Model() string { return "fake" }

func (p *fakeProvider) Invoke(ctx context.Context, prompt string) (*Response, error) {
	if p.calls >= len(p.responses) {
		return nil, errors.New("no scripted response left")
	}
	r := p.responses[p.calls]
	p.calls++
	switch v := r.(type) {
	case error:
		return nil, v
	case string:
		return &Response{Text: v, Usage: Usage{InputTokens: 10, OutputTokens: 5}}, nil
	}
	return nil, errors.New("bad script")
}

func testRegistry(p Provider, maxRetries int) *Registry {
	return &Registry{
		models: map[string]*registered{
			"m": {
				cfg:      ModelConfig{ID: "m", Name: "fake", MaxRetries: maxRetries},
				provider: p,
				stats:    NewStats(time.Hour),
			},
		},
		defaultID: "m",
	}
}

func TestRegistry_CallSuccess(t *testing.T) {
	p := &fakeProvider{responses: []any{"ok"}}
	r := testRegistry(p, 3)

	resp, err := r.Call(context.Background(), "m", "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("expected ok, got %q", resp.Text)
	}
	snap := r.StatsSnapshots()["m"]
	if snap.SuccessCalls != 1 || snap.InputTokens != 10 {
		t.Errorf("expected stats recorded, got %+v", snap)
	}
}

func TestRegistry_RetriesTransient(t *testing.T) {
	p := &fakeProvider{responses: []any{
		&TransientError{StatusCode: 429, Message: "rate limited"},
		"recovered",
	}}
	r := testRegistry(p, 3)

	resp, err := r.Call(context.Background(), "m", "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "recovered" {
		t.Errorf("expected recovered, got %q", resp.Text)
	}
	snap := r.StatsSnapshots()["m"]
	if snap.TotalCalls != 2 || snap.FailedCalls != 1 {
		t.Errorf("expected both attempts recorded, got %+v", snap)
	}
}

func TestRegistry_FatalNotRetried(t *testing.T) {
	p := &fakeProvider{responses: []any{errors.New("bad request"), "never reached"}}
	r := testRegistry(p, 3)

	if _, err := r.Call(context.Background(), "m", "prompt"); err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Errorf("expected 1 attempt for fatal error, got %d", p.calls)
	}
}

func TestRegistry_BudgetExhausted(t *testing.T) {
	p := &fakeProvider{responses: []any{
		&TransientError{StatusCode: 503},
		&TransientError{StatusCode: 503},
		&TransientError{StatusCode: 503},
	}}
	r := testRegistry(p, 3)

	_, err := r.Call(context.Background(), "m", "prompt")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var te *TransientError
	if !errors.As(err, &te) {
		t.Errorf("expected wrapped transient error, got %v", err)
	}
	if p.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", p.calls)
	}
}

func TestRegistry_UnknownModel(t *testing.T) {
	r := testRegistry(&fakeProvider{}, 3)
	if _, err := r.Call(context.Background(), "nope", "prompt"); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestRegistry_Caller(t *testing.T) {
	p := &fakeProvider{responses: []any{"bound"}}
	r := testRegistry(p, 3)
	call := r.Caller("m")
	resp, err := call(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "bound" {
		t.Errorf("expected bound, got %q", resp.Text)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(&TransientError{StatusCode: 500}) {
		t.Error("expected transient error to be transient")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("expected plain error to be fatal")
	}
}

func TestBackoff_CapAndGrowth(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := Backoff(attempt)
		if d < time.Second {
			t.Errorf("attempt %d: backoff %v below base", attempt, d)
		}
		if d > 45*time.Second {
			t.Errorf("attempt %d: backoff %v above cap plus jitter", attempt, d)
		}
	}
}
