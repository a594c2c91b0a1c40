// Package pipeline wires field normalization, chunked LLM analysis,
// aggregation and value resolution into a single fill run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pdf_autofill/pkg/core/cdm"
	"pdf_autofill/pkg/core/field"
	"pdf_autofill/pkg/core/mapping"
	"pdf_autofill/pkg/models"
)

// ErrNoFields is returned when a document yields nothing to analyze. Callers
// treat it as fatal rather than producing an empty output file.
var ErrNoFields = errors.New("no usable form fields found")

// Config holds the tunables of a fill run.
type Config struct {
	FormType       string  `yaml:"form_type"`
	ChunkSize      int     `yaml:"chunk_size"`
	MaxInFlight    int     `yaml:"max_in_flight"`
	FontSize       float64 `yaml:"font_size"`
	BaselineOffset float64 `yaml:"baseline_offset"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      field.DefaultChunkSize,
		MaxInFlight:    4,
		FontSize:       mapping.DefaultFontSize,
		BaselineOffset: mapping.DefaultBaselineOffset,
	}
}

// MappingCache stores previously computed field-to-key mappings keyed by a
// form identity string. Implementations may be backed by Postgres, the local
// filesystem, or both.
type MappingCache interface {
	Get(ctx context.Context, formID string) (map[string]cdm.Key, error)
	Save(ctx context.Context, formID string, assigned map[string]cdm.Key) error
}

// Result is everything a fill run produces short of touching the PDF.
type Result struct {
	Instructions    []mapping.FillInstruction
	Classifications map[string]field.Classification
	Aggregate       *mapping.Aggregate
	Summary         models.FillSummary
}

// Orchestrator runs the classification and mapping pipeline over a set of
// extracted form fields.
type Orchestrator struct {
	analyzer   mapping.FieldAnalyzer
	normalizer *field.Normalizer
	cfg        Config
	cache      MappingCache
}

// NewOrchestrator builds a pipeline around the given analyzer. Zero-value
// fields in cfg fall back to their defaults; a nil normalizer gets the
// default rule table.
func NewOrchestrator(analyzer mapping.FieldAnalyzer, normalizer *field.Normalizer, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if normalizer == nil {
		normalizer = field.NewNormalizer(field.DefaultRules())
	}
	return &Orchestrator{analyzer: analyzer, normalizer: normalizer, cfg: cfg}
}

// SetCache attaches a mapping cache. Cached assignments bypass the analyzer
// for the fields they cover; the rest of the chunk still goes to the LLM.
func (o *Orchestrator) SetCache(c MappingCache) { o.cache = c }

// Run executes the full pipeline: normalize, plan chunks, analyze them with
// bounded concurrency, aggregate the results and resolve values from the
// store. formID identifies the document for cache purposes and may be empty
// to skip the cache. pageText supplies surrounding page text per page number
// and may be nil.
func (o *Orchestrator) Run(ctx context.Context, formID string, fields []field.Descriptor, store *cdm.Store, pageText map[int]string) (*Result, error) {
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	kept, dropped := o.normalizer.Apply(fields)
	fmt.Printf("Found %d form fields, %d kept after noise filtering\n", len(fields), len(kept))
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: all %d fields filtered as noise", ErrNoFields, len(fields))
	}

	cached := o.loadCache(ctx, formID)
	cacheHits := 0
	for _, f := range kept {
		if _, ok := cached[f.ID]; ok {
			cacheHits++
		}
	}
	if cacheHits > 0 {
		fmt.Printf("Mapping cache: %d of %d fields covered\n", cacheHits, len(kept))
	}

	available := store.AvailableKeys()
	chunks := field.Plan(kept, o.cfg.ChunkSize)
	fmt.Printf("Analyzing %d fields in %d chunks (max %d in flight)\n", len(kept), len(chunks), o.cfg.MaxInFlight)

	outcomes := o.dispatch(ctx, chunks, cached, available, pageText)

	agg := mapping.AggregateOutcomes(outcomes, available)
	o.saveCache(ctx, formID, agg)

	instructions, stats := mapping.Resolve(agg, store, mapping.ResolveConfig{
		FontSize:       o.cfg.FontSize,
		BaselineOffset: o.cfg.BaselineOffset,
	})

	return &Result{
		Instructions:    instructions,
		Classifications: agg.Classifications,
		Aggregate:       agg,
		Summary: models.FillSummary{
			FieldsFound:    len(fields),
			NoiseFiltered:  dropped,
			Primary:        agg.Counters.Primary,
			Secondary:      agg.Counters.Secondary,
			Mapped:         agg.Counters.Mapped,
			Unmapped:       agg.Counters.Unmapped,
			Filled:         len(instructions),
			SkippedNoValue: stats.SkippedNoValue,
			FailedChunks:   len(agg.FailedChunks),
			Conflicts:      len(agg.Conflicts),
			Violations:     len(agg.Violations),
			CacheHits:      cacheHits,
		},
	}, nil
}

// dispatch runs the chunks through the analyzer with a bounded number of
// concurrent calls. Every chunk produces exactly one outcome, in chunk order.
func (o *Orchestrator) dispatch(ctx context.Context, chunks [][]field.Descriptor, cached map[string]cdm.Key, available []cdm.Key, pageText map[int]string) []mapping.ChunkOutcome {
	outcomes := make([]mapping.ChunkOutcome, len(chunks))
	sem := make(chan struct{}, o.cfg.MaxInFlight)
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		wg.Add(1)
		go func(idx int, chunk []field.Descriptor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[idx] = o.analyzeChunk(ctx, idx, chunk, cached, available, pageText)
		}(i, chunk)
	}
	wg.Wait()
	return outcomes
}

// analyzeChunk serves cached fields locally and sends the rest to the
// analyzer. An analyzer failure degrades only the uncached fields to
// secondary, and the chunk is still recorded as failed in the report.
func (o *Orchestrator) analyzeChunk(ctx context.Context, idx int, chunk []field.Descriptor, cached map[string]cdm.Key, available []cdm.Key, pageText map[int]string) mapping.ChunkOutcome {
	results := make(map[string]mapping.FieldResult, len(chunk))
	var pending []field.Descriptor
	for _, f := range chunk {
		if key, ok := cached[f.ID]; ok {
			results[f.ID] = mapping.FieldResult{Classification: field.Primary, Key: key}
			continue
		}
		pending = append(pending, f)
	}

	outcome := mapping.ChunkOutcome{Chunk: chunk, Results: results}
	if len(pending) == 0 {
		return outcome
	}

	page := pending[0].Page
	req := mapping.ChunkRequest{
		Index:    idx,
		Fields:   pending,
		FormType: o.cfg.FormType,
		Page:     page,
		PageText: pageText[page],
	}
	analyzed, err := o.analyzer.AnalyzeChunk(ctx, req, available)
	if err != nil {
		fmt.Printf("Warning: chunk %d analysis failed: %v. Treating its fields as secondary.\n", idx, err)
		outcome.Failed = true
		if len(results) > 0 {
			// Keep the cached results; only the pending fields degrade.
			for _, f := range pending {
				results[f.ID] = mapping.FieldResult{Classification: field.Secondary}
			}
			return outcome
		}
		outcome.Err = err
		return outcome
	}
	for id, r := range analyzed {
		results[id] = r
	}
	return outcome
}

func (o *Orchestrator) loadCache(ctx context.Context, formID string) map[string]cdm.Key {
	if o.cache == nil || formID == "" {
		return nil
	}
	cached, err := o.cache.Get(ctx, formID)
	if err != nil {
		fmt.Printf("Warning: mapping cache lookup failed: %v. Proceeding without cache.\n", err)
		return nil
	}
	return cached
}

func (o *Orchestrator) saveCache(ctx context.Context, formID string, agg *mapping.Aggregate) {
	if o.cache == nil || formID == "" {
		return
	}
	mapped := agg.MappedKeys()
	if len(mapped) == 0 {
		return
	}
	if err := o.cache.Save(ctx, formID, mapped); err != nil {
		fmt.Printf("Warning: mapping cache save failed: %v\n", err)
	}
}
