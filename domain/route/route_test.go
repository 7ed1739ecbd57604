package route

import "testing"

func validRoute() *ModelRoute {
	return &ModelRoute{
		Name:        "gpt-4",
		BackendKind: BackendOpenAI,
		Endpoint:    "https://api.openai.com/v1/chat/completions",
		Timeout:     60000,
		Retry:       RetryPolicy{MaxAttempts: 3, BackoffMs: 100, MaxBackoffMs: 1000},
		Headers:     HeaderPolicy{Mode: HeaderModePassthrough},
	}
}

func TestModelRouteValidate(t *testing.T) {
	r := validRoute()
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestModelRouteValidateRejectsBadEndpoint(t *testing.T) {
	r := validRoute()
	r.Endpoint = "not-a-url"
	if err := r.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for invalid endpoint")
	}
}

func TestModelRouteValidateRejectsZeroMaxAttempts(t *testing.T) {
	r := validRoute()
	r.Retry.MaxAttempts = 0
	if err := r.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for max_attempts < 1")
	}
}

func TestModelRouteValidateRejectsBadBackend(t *testing.T) {
	r := validRoute()
	r.BackendKind = "azure"
	if err := r.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for invalid backend_kind")
	}
}

func TestTableResolveExactCaseSensitive(t *testing.T) {
	table := NewTable([]*ModelRoute{validRoute()})

	if _, ok := table.Resolve("gpt-4"); !ok {
		t.Error("Resolve(gpt-4) not found")
	}
	if _, ok := table.Resolve("GPT-4"); ok {
		t.Error("Resolve(GPT-4) matched, want case-sensitive exact match only")
	}
	if _, ok := table.Resolve("gpt-4-turbo"); ok {
		t.Error("Resolve(gpt-4-turbo) matched, want no prefix fallback")
	}
}

func TestTableModelNamesSorted(t *testing.T) {
	b := validRoute()
	b.Name = "claude-3"
	a := validRoute()
	a.Name = "gpt-4"
	table := NewTable([]*ModelRoute{a, b})
	names := table.ModelNames()
	if len(names) != 2 || names[0] != "claude-3" || names[1] != "gpt-4" {
		t.Errorf("ModelNames() = %v, want sorted [claude-3 gpt-4]", names)
	}
}
