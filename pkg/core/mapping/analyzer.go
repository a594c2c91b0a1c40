package mapping

import (
	"context"

	"pdf_autofill/pkg/core/cdm"
	"pdf_autofill/pkg/core/field"
)

// ChunkRequest is one bounded batch of fields submitted for classification and
// key mapping. PageText is empty in AcroForm mode, where the field name/label is
// the only context the classifier gets.
type ChunkRequest struct {
	Index    int
	Fields   []field.Descriptor
	FormType string
	Page     int
	PageText string
}

// FieldResult is the per-field outcome of one analysis call: whose field it
// is, and for primary fields which canonical key it corresponds to. Key is
// empty when the field is secondary or no key plausibly matches.
type FieldResult struct {
	Classification field.Classification
	Key            cdm.Key
}

// FieldAnalyzer is the narrow capability interface over the reasoning service.
// The returned map is keyed by Descriptor.ID; fields absent from the map are
// treated as SECONDARY by the aggregator (fail-safe default). An error means the
// whole chunk failed and every one of its fields degrades to SECONDARY.
//
// availableKeys are the only keys an implementation may propose; the aggregator
// strips anything else as a contract violation rather than trusting it.
type FieldAnalyzer interface {
	AnalyzeChunk(ctx context.Context, req ChunkRequest, availableKeys []cdm.Key) (map[string]FieldResult, error)
}
