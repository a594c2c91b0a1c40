package mapping

import (
	"context"
	"fmt"
	"time"

	"pdf_autofill/pkg/core/cdm"
	"pdf_autofill/pkg/core/field"
	"pdf_autofill/pkg/core/llm"
	"pdf_autofill/pkg/core/utils"
)

// Engine is the LLM-backed FieldAnalyzer. One request per chunk performs both
// relevance classification and key mapping; a bounded number of retries with
// backoff runs before the chunk is reported failed so the caller can degrade it.
type Engine struct {
	provider   llm.Provider
	vocab      VocabTable
	maxRetries int
	backoff    time.Duration
}

var _ FieldAnalyzer = (*Engine)(nil)

// NewEngine builds an analyzer on top of an LLM provider.
func NewEngine(provider llm.Provider, vocab VocabTable) *Engine {
	return &Engine{
		provider:   provider,
		vocab:      vocab,
		maxRetries: 2,
		backoff:    2 * time.Second,
	}
}

// SetRetryPolicy overrides the retry count and initial backoff (mainly for tests).
func (e *Engine) SetRetryPolicy(maxRetries int, backoff time.Duration) {
	e.maxRetries = maxRetries
	e.backoff = backoff
}

// rawFieldResult is the per-field response schema the model is asked to emit.
type rawFieldResult struct {
	Entity string  `json:"entity"`
	CDMKey *string `json:"cdm_key"`
}

// AnalyzeChunk resolves alias-table fields locally, sends the rest to the
// reasoning service, and interprets the response fail-safe: a field the model
// did not answer for is SECONDARY, never an error.
func (e *Engine) AnalyzeChunk(ctx context.Context, req ChunkRequest, availableKeys []cdm.Key) (map[string]FieldResult, error) {
	results := make(map[string]FieldResult, len(req.Fields))

	// Alias fast path: identifiers with a well-known substring skip the model.
	var pending []field.Descriptor
	for _, f := range req.Fields {
		if key, ok := e.vocab.AliasKey(f.ShortID + " " + f.Label); ok {
			results[f.ID] = FieldResult{Classification: field.Primary, Key: key}
			continue
		}
		pending = append(pending, f)
	}
	if len(pending) == 0 {
		return results, nil
	}

	userPrompt := buildUserPrompt(req, pending, availableKeys)
	instructions := e.provider.AdaptInstructions(systemPrompt)
	options := map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
	}

	var raw string
	var err error
	for attempt := 0; ; attempt++ {
		raw, err = e.provider.GenerateResponse(ctx, userPrompt, instructions, options)
		if err == nil {
			break
		}
		if attempt >= e.maxRetries {
			return nil, fmt.Errorf("chunk %d analysis failed after %d attempts: %w", req.Index, attempt+1, err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chunk %d analysis cancelled: %w", req.Index, ctx.Err())
		case <-time.After(e.backoff << attempt):
		}
	}

	parsed := make(map[string]rawFieldResult)
	if _, perr := utils.SmartParse(raw, &parsed); perr != nil {
		return nil, fmt.Errorf("chunk %d returned unparsable response: %w", req.Index, perr)
	}

	for _, f := range pending {
		r, ok := parsed[f.ShortID]
		if !ok {
			r, ok = parsed[f.ID]
		}
		if !ok {
			// Absent from the response: fail-safe SECONDARY, by contract.
			results[f.ID] = FieldResult{Classification: field.Secondary}
			continue
		}
		results[f.ID] = interpretResult(r)
	}
	return results, nil
}

// interpretResult normalizes one model answer. A missing entity tag falls back
// to key presence: a proposed key implies the model considered the field
// primary; a null key without a tag means secondary-or-unmatched, which
// degrades to SECONDARY.
func interpretResult(r rawFieldResult) FieldResult {
	switch r.Entity {
	case string(field.Secondary):
		return FieldResult{Classification: field.Secondary}
	case string(field.Primary):
		res := FieldResult{Classification: field.Primary}
		if r.CDMKey != nil && *r.CDMKey != "" {
			res.Key = cdm.Key(*r.CDMKey)
		}
		return res
	}
	if r.CDMKey != nil && *r.CDMKey != "" {
		return FieldResult{Classification: field.Primary, Key: cdm.Key(*r.CDMKey)}
	}
	return FieldResult{Classification: field.Secondary}
}
