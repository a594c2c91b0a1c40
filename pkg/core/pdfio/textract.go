package pdfio

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"pdf_autofill/pkg/core/field"
)

// Textract AnalyzeDocument output, reduced to the shapes we read.
type textractDocument struct {
	Blocks []textractBlock `json:"Blocks"`
}

type textractBlock struct {
	ID              string             `json:"Id"`
	BlockType       string             `json:"BlockType"`
	EntityTypes     []string           `json:"EntityTypes"`
	Text            string             `json:"Text"`
	Page            int                `json:"Page"`
	Geometry        *textractGeometry  `json:"Geometry"`
	Relationships   []textractRelation `json:"Relationships"`
	SelectionStatus string             `json:"SelectionStatus"`
}

type textractGeometry struct {
	BoundingBox textractBox `json:"BoundingBox"`
}

type textractBox struct {
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
	Left   float64 `json:"Left"`
	Top    float64 `json:"Top"`
}

type textractRelation struct {
	Type string   `json:"Type"`
	IDs  []string `json:"Ids"`
}

// LayoutAnalysis is everything coordinate-fill mode extracts from a Textract
// forms analysis: the blank labeled regions, plus the page text the
// classifier uses for context.
type LayoutAnalysis struct {
	Fields   []field.Descriptor
	PageText map[int]string
}

// LoadTextract reads a Textract AnalyzeDocument JSON file from disk.
func LoadTextract(path string) (*LayoutAnalysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Textract output: %w", err)
	}
	return ParseTextract(data)
}

// ParseTextract turns a Textract forms analysis into fillable field
// descriptors. A key/value pair becomes a field only when its value region is
// blank: regions that already hold text were filled by hand, and checkbox
// regions (selection elements) are skipped entirely. The value region's box
// positions the overlay text; when the value has no geometry the key's box is
// used instead.
func ParseTextract(data []byte) (*LayoutAnalysis, error) {
	var doc textractDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse Textract output: %w", err)
	}

	byID := make(map[string]*textractBlock, len(doc.Blocks))
	for i := range doc.Blocks {
		byID[doc.Blocks[i].ID] = &doc.Blocks[i]
	}

	var fields []field.Descriptor
	for i := range doc.Blocks {
		b := &doc.Blocks[i]
		if b.BlockType != "KEY_VALUE_SET" || !hasEntityType(b, "KEY") {
			continue
		}
		label := childText(b, byID)
		if strings.TrimSpace(label) == "" {
			continue
		}

		value := relatedBlock(b, "VALUE", byID)
		if value != nil {
			if hasSelectionChild(value, byID) {
				continue
			}
			if strings.TrimSpace(childText(value, byID)) != "" {
				continue
			}
		}

		box := blockBox(b)
		page := b.Page
		if value != nil {
			if vb := blockBox(value); vb != nil {
				box = vb
			}
			if value.Page > 0 {
				page = value.Page
			}
		}
		if page == 0 {
			page = 1
		}

		d := field.NewDescriptor(uuid.NewString())
		d.ShortID = label
		d.Label = label
		d.Page = page
		d.Box = box
		if box != nil {
			d.X, d.Y = box.Center()
		}
		fields = append(fields, d)
	}

	field.SortByPosition(fields)
	return &LayoutAnalysis{Fields: fields, PageText: collectPageText(doc.Blocks)}, nil
}

func hasEntityType(b *textractBlock, t string) bool {
	for _, e := range b.EntityTypes {
		if e == t {
			return true
		}
	}
	return false
}

func relatedBlock(b *textractBlock, relType string, byID map[string]*textractBlock) *textractBlock {
	for _, rel := range b.Relationships {
		if rel.Type != relType {
			continue
		}
		for _, id := range rel.IDs {
			if child, ok := byID[id]; ok {
				return child
			}
		}
	}
	return nil
}

// childText joins the WORD children of a block in order.
func childText(b *textractBlock, byID map[string]*textractBlock) string {
	var words []string
	for _, rel := range b.Relationships {
		if rel.Type != "CHILD" {
			continue
		}
		for _, id := range rel.IDs {
			child, ok := byID[id]
			if !ok || child.BlockType != "WORD" {
				continue
			}
			words = append(words, child.Text)
		}
	}
	return strings.Join(words, " ")
}

func hasSelectionChild(b *textractBlock, byID map[string]*textractBlock) bool {
	for _, rel := range b.Relationships {
		if rel.Type != "CHILD" {
			continue
		}
		for _, id := range rel.IDs {
			if child, ok := byID[id]; ok && child.BlockType == "SELECTION_ELEMENT" {
				return true
			}
		}
	}
	return false
}

func blockBox(b *textractBlock) *field.BoundingBox {
	if b.Geometry == nil {
		return nil
	}
	g := b.Geometry.BoundingBox
	if g.Width == 0 && g.Height == 0 {
		return nil
	}
	return &field.BoundingBox{Left: g.Left, Top: g.Top, Width: g.Width, Height: g.Height}
}

// collectPageText joins the LINE blocks of each page in reading order.
func collectPageText(blocks []textractBlock) map[int]string {
	type line struct {
		top, left float64
		text      string
	}
	byPage := make(map[int][]line)
	for i := range blocks {
		b := &blocks[i]
		if b.BlockType != "LINE" || b.Text == "" {
			continue
		}
		page := b.Page
		if page == 0 {
			page = 1
		}
		l := line{text: b.Text}
		if b.Geometry != nil {
			l.top = b.Geometry.BoundingBox.Top
			l.left = b.Geometry.BoundingBox.Left
		}
		byPage[page] = append(byPage[page], l)
	}

	text := make(map[int]string, len(byPage))
	for page, lines := range byPage {
		sort.SliceStable(lines, func(i, j int) bool {
			if lines[i].top != lines[j].top {
				return lines[i].top < lines[j].top
			}
			return lines[i].left < lines[j].left
		})
		var parts []string
		for _, l := range lines {
			parts = append(parts, l.text)
		}
		text[page] = strings.Join(parts, "\n")
	}
	return text
}
