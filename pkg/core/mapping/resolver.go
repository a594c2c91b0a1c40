package mapping

import (
	"strings"

	"pdf_autofill/pkg/core/cdm"
	"pdf_autofill/pkg/core/field"
)

// Placement is the geometry carried into the PDF writer for coordinate-fill
// mode. BaselineOffset is added to the converted bottom edge of the box so
// overlay text sits on the printed line instead of floating above or through it.
type Placement struct {
	Page           int
	Box            *field.BoundingBox
	FontSize       float64
	BaselineOffset float64
}

// FillInstruction is the sole artifact handed to the PDF-writing collaborator:
// one field, its resolved value, and where to put it.
type FillInstruction struct {
	FieldID   string
	ShortID   string
	Key       cdm.Key
	Value     string
	Placement Placement
}

// ResolveConfig holds the overlay text parameters.
type ResolveConfig struct {
	FontSize       float64 `yaml:"font_size"`
	BaselineOffset float64 `yaml:"baseline_offset"`
}

// Overlay defaults tuned against Textract boxes on letter-size forms.
const (
	DefaultFontSize       = 8.0
	DefaultBaselineOffset = -2.0
)

// ResolveStats counts resolver outcomes for the run summary.
type ResolveStats struct {
	Filled         int
	SkippedNoValue int
}

// Resolve turns the final mapping into an ordered list of fill instructions.
// A mapped key with no value in the store (or an empty one) skips the field;
// that is expected per-subject sparseness, not an error.
func Resolve(agg *Aggregate, store *cdm.Store, cfg ResolveConfig) ([]FillInstruction, ResolveStats) {
	if cfg.FontSize == 0 {
		cfg.FontSize = DefaultFontSize
	}
	if cfg.BaselineOffset == 0 {
		cfg.BaselineOffset = DefaultBaselineOffset
	}

	var instructions []FillInstruction
	var stats ResolveStats

	for _, asg := range agg.Assignments {
		if asg.Key == "" {
			continue
		}
		value, ok := store.Lookup(asg.Key)
		if !ok || strings.TrimSpace(value) == "" {
			stats.SkippedNoValue++
			continue
		}
		instructions = append(instructions, FillInstruction{
			FieldID: asg.Field.ID,
			ShortID: asg.Field.ShortID,
			Key:     asg.Key,
			Value:   value,
			Placement: Placement{
				Page:           asg.Field.Page,
				Box:            asg.Field.Box,
				FontSize:       cfg.FontSize,
				BaselineOffset: cfg.BaselineOffset,
			},
		})
		stats.Filled++
	}
	return instructions, stats
}
