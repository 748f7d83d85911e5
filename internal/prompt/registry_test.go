package prompt

import (
	"strings"
	"testing"
)

func TestAllKeysRegistered(t *testing.T) {
	keys := []string{
		KeyClaimExtract, KeyClaimValidate, KeyEvidenceExtract,
		KeyReliabilityScore, KeyBoundaryCluster,
		KeyDebateAdvocate, KeyDebateChallenge, KeyDebateReconcile,
		KeyValidateGrounding, KeyValidateDirection, KeyNarrative,
	}
	for _, key := range keys {
		if !Known(key) {
			t.Errorf("prompt %q not registered", key)
		}
	}
	if len(Keys()) != len(keys) {
		t.Errorf("registry holds %d prompts, expected %d", len(Keys()), len(keys))
	}
}

func TestRenderSubstitutesVars(t *testing.T) {
	system, user, err := Render(KeyClaimExtract, map[string]any{"input": "water boils at 100C"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if system == "" {
		t.Error("system message should not be empty")
	}
	if !strings.Contains(user, "water boils at 100C") {
		t.Errorf("rendered prompt missing the input: %s", user)
	}
}

func TestRenderJSONHelper(t *testing.T) {
	_, user, err := Render(KeyReliabilityScore, map[string]any{
		"urls": []string{"https://a.example", "https://b.example"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(user, `["https://a.example","https://b.example"]`) {
		t.Errorf("urls should render as compact JSON: %s", user)
	}
}

func TestRenderUnknownKey(t *testing.T) {
	if _, _, err := Render("no-such-prompt", nil); err == nil {
		t.Error("unknown key should error")
	}
}
