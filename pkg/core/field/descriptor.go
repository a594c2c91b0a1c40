package field

import (
	"sort"
	"strings"
)

// Classification tags a field by whose information it requests.
type Classification string

const (
	// Primary marks fields belonging to the fill subject (the account holder).
	Primary Classification = "PRIMARY"
	// Secondary marks fields belonging to any other party (beneficiary, spouse,
	// joint owner, receiving firm). Secondary fields are never auto-filled.
	Secondary Classification = "SECONDARY"
	// Irrelevant marks structural fields dropped by the normalizer before
	// classification (layout containers, buttons, barcodes, signature lines).
	Irrelevant Classification = "IRRELEVANT"
)

// BoundingBox is a normalized (0..1) page-relative rectangle, matching the
// geometry reported by the layout extraction service.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the box.
func (b BoundingBox) Center() (x, y float64) {
	return b.Left + b.Width/2, b.Top + b.Height/2
}

// Descriptor is one form field or one OCR-detected text region. Descriptors are
// immutable once produced; stages that enrich a field return a new descriptor.
type Descriptor struct {
	// ID is the raw identifier: the form field's full internal name, or a
	// synthetic id for OCR regions.
	ID string
	// ShortID is the last dotted segment of ID (XFA forms nest field names).
	ShortID string
	// Normalized is the normalizer output for ShortID; empty until normalized.
	Normalized string
	// Label is the human-readable label or nearby text, when known.
	Label string
	// Page is 1-based; 0 when unknown (AcroForm fields fill by name, not position).
	Page int
	// X, Y are the center point of the field, normalized or in page points
	// depending on the extraction source. Used only for ordering and prompts.
	X, Y float64
	// Box is present only in coordinate-fill mode.
	Box *BoundingBox
}

// NewDescriptor builds a descriptor from a raw field name, deriving ShortID.
func NewDescriptor(rawID string) Descriptor {
	return Descriptor{ID: rawID, ShortID: shortName(rawID)}
}

func shortName(id string) string {
	if i := strings.LastIndex(id, "."); i >= 0 && i+1 < len(id) {
		return id[i+1:]
	}
	return id
}

// SortByPosition orders fields top-to-bottom then left-to-right within each page,
// the reading order the classifier sees. The sort is stable so fields without
// geometry keep their extraction order.
func SortByPosition(fields []Descriptor) {
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Page != fields[j].Page {
			return fields[i].Page < fields[j].Page
		}
		if fields[i].Y != fields[j].Y {
			return fields[i].Y < fields[j].Y
		}
		return fields[i].X < fields[j].X
	})
}
