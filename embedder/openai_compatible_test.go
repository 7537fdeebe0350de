package embedder

import "testing"

func TestNewOpenAICompatible_Validation(t *testing.T) {
	if _, err := NewOpenAICompatible(OpenAICompatibleConfig{BaseURL: "http://localhost:8080/v1"}); err == nil {
		t.Fatalf("expected error for missing model")
	}
	if _, err := NewOpenAICompatible(OpenAICompatibleConfig{Model: "text-embedding-3-small"}); err == nil {
		t.Fatalf("expected error for missing base URL")
	}
}

func TestNewOpenAICompatible_Fields(t *testing.T) {
	e, err := NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:    "http://localhost:8080/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Model() != "text-embedding-3-small" {
		t.Fatalf("model = %q", e.Model())
	}
	if e.Dimensions() != 256 {
		t.Fatalf("dimensions = %d", e.Dimensions())
	}
}
