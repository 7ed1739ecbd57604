package headers

import (
	"testing"

	"github.com/artpar/llmproxy/domain/route"
)

func openAIRoute() *route.ModelRoute {
	return &route.ModelRoute{
		Name:        "gpt-4",
		BackendKind: route.BackendOpenAI,
		APIKey:      "sk-upstream",
		Headers:     route.HeaderPolicy{Mode: route.HeaderModePassthrough},
	}
}

func TestApplyWhitelistStartsEmpty(t *testing.T) {
	r := openAIRoute()
	r.Headers = route.HeaderPolicy{Mode: route.HeaderModeWhitelist, Add: map[string]string{"x-team": "core"}}
	out := Apply(map[string]string{"X-Custom": "keep-me-out"}, r.Headers, r)

	if _, ok := out["X-Custom"]; ok {
		t.Errorf("whitelist mode leaked an unlisted incoming header: %v", out)
	}
	if out["x-team"] != "core" {
		t.Errorf("x-team = %v, want core", out["x-team"])
	}
}

func TestApplyPassthroughKeepsIncoming(t *testing.T) {
	r := openAIRoute()
	out := Apply(map[string]string{"X-Custom": "v"}, r.Headers, r)
	if out["X-Custom"] != "v" {
		t.Errorf("passthrough dropped incoming header: %v", out)
	}
}

func TestApplyDropRemovesHeader(t *testing.T) {
	r := openAIRoute()
	r.Headers = route.HeaderPolicy{Mode: route.HeaderModePassthrough, Drop: []string{"X-Drop-Me"}}
	out := Apply(map[string]string{"X-Drop-Me": "v", "X-Keep": "v"}, r.Headers, r)
	if _, ok := out["X-Drop-Me"]; ok {
		t.Error("X-Drop-Me was not dropped")
	}
	if out["X-Keep"] != "v" {
		t.Error("X-Keep should survive")
	}
}

func TestApplyAddDoesNotOverrideExisting(t *testing.T) {
	r := openAIRoute()
	r.Headers = route.HeaderPolicy{Mode: route.HeaderModePassthrough, Add: map[string]string{"X-Team": "fallback"}}
	out := Apply(map[string]string{"X-Team": "client-value"}, r.Headers, r)
	if out["X-Team"] != "client-value" {
		t.Errorf("add overrode existing header: %v", out["X-Team"])
	}
}

func TestApplyForceOverridesExisting(t *testing.T) {
	r := openAIRoute()
	r.Headers = route.HeaderPolicy{Mode: route.HeaderModePassthrough, Force: map[string]string{"X-Team": "forced"}}
	out := Apply(map[string]string{"X-Team": "client-value"}, r.Headers, r)
	if out["X-Team"] != "forced" {
		t.Errorf("force did not override: %v", out["X-Team"])
	}
}

func TestApplyOrderDropThenAddThenForce(t *testing.T) {
	r := openAIRoute()
	r.Headers = route.HeaderPolicy{
		Mode:  route.HeaderModePassthrough,
		Drop:  []string{"X-Team"},
		Add:   map[string]string{"X-Team": "added"},
		Force: map[string]string{"X-Team": "forced"},
	}
	out := Apply(map[string]string{"X-Team": "client"}, r.Headers, r)
	if out["X-Team"] != "forced" {
		t.Errorf("X-Team = %v, want forced (drop -> add -> force order)", out["X-Team"])
	}
}

func TestApplyStripsHopByHopHeaders(t *testing.T) {
	r := openAIRoute()
	out := Apply(map[string]string{
		"Connection":        "keep-alive",
		"Transfer-Encoding": "chunked",
		"Proxy-Connection":  "keep-alive",
		"X-Keep":            "v",
	}, r.Headers, r)
	for _, hop := range []string{"Connection", "Transfer-Encoding", "Proxy-Connection"} {
		if _, ok := out[hop]; ok {
			t.Errorf("%s was not stripped", hop)
		}
	}
	if out["X-Keep"] != "v" {
		t.Error("X-Keep should survive hop-by-hop stripping")
	}
}

func TestApplyInjectsOpenAIAuthLast(t *testing.T) {
	r := openAIRoute()
	r.Headers = route.HeaderPolicy{Mode: route.HeaderModePassthrough, Force: map[string]string{"Authorization": "Bearer client-key"}}
	out := Apply(map[string]string{}, r.Headers, r)
	if out["Authorization"] != "Bearer sk-upstream" {
		t.Errorf("Authorization = %v, want route auth to win over force", out["Authorization"])
	}
}

func TestApplyInjectsAnthropicAuthAndVersion(t *testing.T) {
	r := openAIRoute()
	r.BackendKind = route.BackendAnthropic
	r.APIKey = "anthropic-key"
	out := Apply(map[string]string{}, r.Headers, r)
	if out["x-api-key"] != "anthropic-key" {
		t.Errorf("x-api-key = %v", out["x-api-key"])
	}
	if out["anthropic-version"] != "2023-06-01" {
		t.Errorf("anthropic-version = %v", out["anthropic-version"])
	}
	if _, ok := out["Authorization"]; ok {
		t.Error("Authorization should not be set for anthropic backend")
	}
}

func TestApplySkipsInjectionWhenClientSuppliesIdenticalAuthInPassthrough(t *testing.T) {
	r := openAIRoute()
	out := Apply(map[string]string{"Authorization": "Bearer sk-upstream"}, r.Headers, r)
	if out["Authorization"] != "Bearer sk-upstream" {
		t.Errorf("Authorization = %v", out["Authorization"])
	}
}

func TestApplyOverridesDifferentClientAuthInPassthrough(t *testing.T) {
	r := openAIRoute()
	out := Apply(map[string]string{"Authorization": "Bearer client-key"}, r.Headers, r)
	if out["Authorization"] != "Bearer sk-upstream" {
		t.Errorf("Authorization = %v, want route key to override mismatched client auth", out["Authorization"])
	}
}

func TestApplyPreservesOriginalCasingFromIncoming(t *testing.T) {
	r := openAIRoute()
	out := Apply(map[string]string{"X-Custom-Header": "v"}, r.Headers, r)
	if _, ok := out["X-Custom-Header"]; !ok {
		t.Errorf("original casing not preserved: %v", out)
	}
}
