package mapping

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"pdf_autofill/pkg/core/cdm"
	"pdf_autofill/pkg/core/field"
)

// MockProvider implements llm.Provider for tests.
type MockProvider struct {
	GenerateFunc func(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	AdaptFunc    func(rawInstructions string) string
	Calls        int
	LastPrompt   string
}

func (m *MockProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	m.Calls++
	m.LastPrompt = prompt
	return m.GenerateFunc(ctx, prompt, systemPrompt, options)
}

func (m *MockProvider) AdaptInstructions(rawInstructions string) string {
	if m.AdaptFunc != nil {
		return m.AdaptFunc(rawInstructions)
	}
	return rawInstructions
}

func testKeys() []cdm.Key {
	return []cdm.Key{"person.first_name", "person.last_name", "person.ssn", "account.number"}
}

func descriptors(shortIDs ...string) []field.Descriptor {
	fields := make([]field.Descriptor, 0, len(shortIDs))
	for _, id := range shortIDs {
		fields = append(fields, field.NewDescriptor(id))
	}
	return fields
}

func TestAnalyzeChunkReturnsResultForEveryField(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
			return `{
				"fldA": {"entity": "PRIMARY", "cdm_key": "person.first_name"},
				"fldB": {"entity": "SECONDARY", "cdm_key": null}
			}`, nil
		},
	}
	engine := NewEngine(provider, DefaultVocab())

	req := ChunkRequest{Fields: descriptors("fldA", "fldB")}
	results, err := engine.AnalyzeChunk(context.Background(), req, testKeys())
	if err != nil {
		t.Fatalf("AnalyzeChunk returned error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if r := results["fldA"]; r.Classification != field.Primary || r.Key != "person.first_name" {
		t.Errorf("fldA: got %+v", r)
	}
	if r := results["fldB"]; r.Classification != field.Secondary || r.Key != "" {
		t.Errorf("fldB: got %+v", r)
	}
}

func TestAnalyzeChunkMissingFieldDefaultsToSecondary(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
			// The model forgot fldB entirely.
			return `{"fldA": {"entity": "PRIMARY", "cdm_key": "person.ssn"}}`, nil
		},
	}
	engine := NewEngine(provider, DefaultVocab())

	results, err := engine.AnalyzeChunk(context.Background(), ChunkRequest{Fields: descriptors("fldA", "fldB")}, testKeys())
	if err != nil {
		t.Fatalf("AnalyzeChunk returned error: %v", err)
	}
	if r := results["fldB"]; r.Classification != field.Secondary {
		t.Errorf("Unanswered field must default to SECONDARY, got %+v", r)
	}
}

func TestAnalyzeChunkRepairsSloppyJSON(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
			// Code-fenced with a trailing comma, as models like to produce.
			return "```json\n{\"fldA\": {\"entity\": \"PRIMARY\", \"cdm_key\": \"account.number\"},}\n```", nil
		},
	}
	engine := NewEngine(provider, DefaultVocab())

	results, err := engine.AnalyzeChunk(context.Background(), ChunkRequest{Fields: descriptors("fldA")}, testKeys())
	if err != nil {
		t.Fatalf("AnalyzeChunk returned error: %v", err)
	}
	if r := results["fldA"]; r.Key != "account.number" {
		t.Errorf("Expected account.number after repair, got %+v", r)
	}
}

func TestAnalyzeChunkEntityTagWinsOverKeyPresence(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
			return `{
				"fldA": {"entity": "SECONDARY", "cdm_key": "person.ssn"},
				"fldB": {"cdm_key": "person.last_name"},
				"fldC": {"cdm_key": null}
			}`, nil
		},
	}
	engine := NewEngine(provider, DefaultVocab())

	results, err := engine.AnalyzeChunk(context.Background(), ChunkRequest{Fields: descriptors("fldA", "fldB", "fldC")}, testKeys())
	if err != nil {
		t.Fatalf("AnalyzeChunk returned error: %v", err)
	}
	// Explicit SECONDARY wins even though a key was proposed.
	if r := results["fldA"]; r.Classification != field.Secondary || r.Key != "" {
		t.Errorf("fldA: got %+v", r)
	}
	// No tag but a key: primary.
	if r := results["fldB"]; r.Classification != field.Primary || r.Key != "person.last_name" {
		t.Errorf("fldB: got %+v", r)
	}
	// No tag, null key: secondary.
	if r := results["fldC"]; r.Classification != field.Secondary {
		t.Errorf("fldC: got %+v", r)
	}
}

func TestAnalyzeChunkAliasFastPathSkipsModel(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
			return `{"SomethingElse": {"entity": "SECONDARY", "cdm_key": null}}`, nil
		},
	}
	engine := NewEngine(provider, DefaultVocab())

	req := ChunkRequest{Fields: descriptors("AccountNumber[0]", "SomethingElse")}
	results, err := engine.AnalyzeChunk(context.Background(), req, testKeys())
	if err != nil {
		t.Fatalf("AnalyzeChunk returned error: %v", err)
	}
	if r := results["AccountNumber[0]"]; r.Classification != field.Primary || r.Key != "account.number" {
		t.Errorf("Alias field: got %+v", r)
	}
	if strings.Contains(provider.LastPrompt, "AccountNumber") {
		t.Error("Alias-resolved field must not be sent to the model")
	}
}

func TestAnalyzeChunkSecondaryIdentifierNeverAliasMatches(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
			return `{"benef_FirstName": {"entity": "SECONDARY", "cdm_key": null}}`, nil
		},
	}
	engine := NewEngine(provider, DefaultVocab())

	results, err := engine.AnalyzeChunk(context.Background(), ChunkRequest{Fields: descriptors("benef_FirstName")}, testKeys())
	if err != nil {
		t.Fatalf("AnalyzeChunk returned error: %v", err)
	}
	if provider.Calls != 1 {
		t.Errorf("Expected the field to reach the model, calls = %d", provider.Calls)
	}
	if r := results["benef_FirstName"]; r.Classification != field.Secondary {
		t.Errorf("benef_FirstName: got %+v", r)
	}
}

func TestAnalyzeChunkRetriesThenSucceeds(t *testing.T) {
	provider := &MockProvider{}
	provider.GenerateFunc = func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
		if provider.Calls == 1 {
			return "", fmt.Errorf("transient upstream error")
		}
		return `{"fldA": {"entity": "PRIMARY", "cdm_key": "person.first_name"}}`, nil
	}
	engine := NewEngine(provider, DefaultVocab())
	engine.SetRetryPolicy(2, time.Millisecond)

	results, err := engine.AnalyzeChunk(context.Background(), ChunkRequest{Fields: descriptors("fldA")}, testKeys())
	if err != nil {
		t.Fatalf("Expected retry to recover, got error: %v", err)
	}
	if provider.Calls != 2 {
		t.Errorf("Expected 2 calls, got %d", provider.Calls)
	}
	if r := results["fldA"]; r.Key != "person.first_name" {
		t.Errorf("fldA: got %+v", r)
	}
}

func TestAnalyzeChunkFailsAfterRetriesExhausted(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
			return "", fmt.Errorf("upstream down")
		},
	}
	engine := NewEngine(provider, DefaultVocab())
	engine.SetRetryPolicy(1, time.Millisecond)

	_, err := engine.AnalyzeChunk(context.Background(), ChunkRequest{Index: 3, Fields: descriptors("fldA")}, testKeys())
	if err == nil {
		t.Fatal("Expected error after retries exhausted")
	}
	if provider.Calls != 2 {
		t.Errorf("Expected 2 calls (initial + 1 retry), got %d", provider.Calls)
	}
}

func TestAnalyzeChunkUnparsableResponseIsError(t *testing.T) {
	provider := &MockProvider{
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
			return "I cannot help with that.", nil
		},
	}
	engine := NewEngine(provider, DefaultVocab())

	_, err := engine.AnalyzeChunk(context.Background(), ChunkRequest{Fields: descriptors("fldA")}, testKeys())
	if err == nil {
		t.Fatal("Expected error for unparsable response")
	}
}

func TestBuildUserPromptIncludesKeysAndFields(t *testing.T) {
	req := ChunkRequest{
		FormType: "brokerage account transfer",
		Page:     2,
		PageText: "Section 3: Beneficiary Information",
	}
	prompt := buildUserPrompt(req, descriptors("fldA"), testKeys())

	for _, want := range []string{"fldA", "person.first_name", "account.number", "brokerage account transfer", "Beneficiary Information"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestAnalyzeChunkSendsAdaptedInstructions(t *testing.T) {
	var gotSystem string
	provider := &MockProvider{
		AdaptFunc: func(raw string) string {
			return "ADAPTED: " + raw
		},
		GenerateFunc: func(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
			gotSystem = systemPrompt
			return `{"fldA": {"entity": "SECONDARY", "cdm_key": null}}`, nil
		},
	}
	engine := NewEngine(provider, DefaultVocab())

	req := ChunkRequest{Fields: descriptors("fldA")}
	if _, err := engine.AnalyzeChunk(context.Background(), req, testKeys()); err != nil {
		t.Fatalf("AnalyzeChunk returned error: %v", err)
	}

	if !strings.HasPrefix(gotSystem, "ADAPTED: ") {
		t.Errorf("System prompt was not run through AdaptInstructions: %q", gotSystem)
	}
}
