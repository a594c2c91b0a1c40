package pdfio

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdf_autofill/pkg/core/mapping"
)

// Watermark geometry is anchored bottom-left and offset in points, so the
// overlay text lands at the converted box position regardless of page size.
const overlayDescFmt = "fontname:Helvetica, points:%.1f, scale:1 abs, rot:0, opacity:1, pos:bl, off:%.2f %.2f"

// ApplyOverlay stamps each instruction's value onto its page as positioned
// text. Used for static forms that have no AcroForm fields; placement comes
// from the normalized Textract bounding boxes. Returns the number of values
// stamped and any per-field failures.
func ApplyOverlay(inPath, outPath string, instructions []mapping.FillInstruction) (int, []WriteFailure, error) {
	dims, err := api.PageDimsFile(inPath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read input PDF: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return 0, nil, fmt.Errorf("failed to create output PDF: %w", err)
	}

	var failures []WriteFailure
	filled := 0
	for _, inst := range instructions {
		p := inst.Placement
		if p.Box == nil || p.Page < 1 || p.Page > len(dims) {
			failures = append(failures, WriteFailure{inst.FieldID, fmt.Errorf("no usable geometry")})
			continue
		}
		dim := dims[p.Page-1]

		// Textract boxes are top-left origin, normalized 0..1; PDF user space
		// is bottom-left origin in points.
		x := p.Box.Left * dim.Width
		y := dim.Height - (p.Box.Top+p.Box.Height)*dim.Height + p.BaselineOffset

		desc := fmt.Sprintf(overlayDescFmt, p.FontSize, x, y)
		wm, err := api.TextWatermark(inst.Value, desc, true, false, types.POINTS)
		if err != nil {
			failures = append(failures, WriteFailure{inst.FieldID, fmt.Errorf("bad overlay description: %w", err)})
			continue
		}
		pages := []string{strconv.Itoa(p.Page)}
		if err := api.AddWatermarksFile(outPath, "", pages, wm, nil); err != nil {
			fmt.Printf("Warning: failed to stamp field %s: %v. Skipping.\n", inst.FieldID, err)
			failures = append(failures, WriteFailure{inst.FieldID, err})
			continue
		}
		filled++
	}
	return filled, failures, nil
}
