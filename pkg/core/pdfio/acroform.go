// Package pdfio handles the PDF side of a fill run: AcroForm field
// enumeration and value writing via pdfcpu, text overlay for static forms,
// Textract layout parsing, and page text extraction.
package pdfio

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdf_autofill/pkg/core/field"
	"pdf_autofill/pkg/core/mapping"
)

// WriteFailure records one field that could not be written. Write failures
// never abort the run; the remaining fields still get filled.
type WriteFailure struct {
	FieldID string
	Err     error
}

func readContext(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

// ListFormFields enumerates the terminal AcroForm fields of a PDF. Nested XFA
// field trees are flattened into fully qualified dotted names; the widget
// rectangle, when present, supplies a center point for reading-order sorting.
func ListFormFields(path string) ([]field.Descriptor, error) {
	ctx, err := readContext(path)
	if err != nil {
		return nil, err
	}
	dicts, order, err := collectFieldDicts(ctx)
	if err != nil {
		return nil, err
	}

	var fields []field.Descriptor
	for _, name := range order {
		fields = append(fields, describeField(ctx, name, dicts[name]))
	}
	return fields, nil
}

// collectFieldDicts walks the AcroForm field tree and returns every terminal
// field dictionary keyed by its fully qualified name, plus the names in
// document order. The same walk backs both listing and filling so the two
// always agree on field identity.
func collectFieldDicts(ctx *model.Context) (map[string]types.Dict, []string, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, nil, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	dicts := make(map[string]types.Dict)
	var order []string
	walkFieldArray(ctx, fieldsArray, "", dicts, &order)
	return dicts, order, nil
}

func walkFieldArray(ctx *model.Context, arr types.Array, prefix string, dicts map[string]types.Dict, order *[]string) {
	for i, obj := range arr {
		fieldDict, err := ctx.DereferenceDict(obj)
		if err != nil || fieldDict == nil {
			continue
		}

		name := ""
		if nameObj, found := fieldDict.Find("T"); found {
			if s, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil {
				name = s
			}
		}
		if name == "" {
			name = fmt.Sprintf("field_%d", i)
		}
		qualified := name
		if prefix != "" {
			qualified = prefix + "." + name
		}

		// A kid carrying its own T entry is a nested field, not a widget.
		if kidsObj, found := fieldDict.Find("Kids"); found {
			if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil && len(kidsArray) > 0 {
				if kidsAreFields(ctx, kidsArray) {
					walkFieldArray(ctx, kidsArray, qualified, dicts, order)
					continue
				}
			}
		}

		dicts[qualified] = fieldDict
		*order = append(*order, qualified)
	}
}

func kidsAreFields(ctx *model.Context, kids types.Array) bool {
	kidDict, err := ctx.DereferenceDict(kids[0])
	if err != nil || kidDict == nil {
		return false
	}
	_, found := kidDict.Find("T")
	return found
}

func describeField(ctx *model.Context, qualified string, fieldDict types.Dict) field.Descriptor {
	d := field.NewDescriptor(qualified)

	if tuObj, found := fieldDict.Find("TU"); found {
		if label, err := ctx.DereferenceStringOrHexLiteral(tuObj, model.V10, nil); err == nil {
			d.Label = label
		}
	}

	if rect := fieldRect(ctx, fieldDict); rect != nil {
		d.X = (rect[0] + rect[2]) / 2
		// PDF user space grows upward; flip so smaller Y means higher on page.
		d.Y = -(rect[1] + rect[3]) / 2
	}
	return d
}

// fieldRect returns the widget rectangle [llx lly urx ury] from the field
// dictionary itself or its first widget kid.
func fieldRect(ctx *model.Context, fieldDict types.Dict) []float64 {
	if rectObj, found := fieldDict.Find("Rect"); found {
		if r := parseRect(ctx, rectObj); r != nil {
			return r
		}
	}
	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil && len(kidsArray) > 0 {
			if widgetDict, err := ctx.DereferenceDict(kidsArray[0]); err == nil && widgetDict != nil {
				if rectObj, found := widgetDict.Find("Rect"); found {
					return parseRect(ctx, rectObj)
				}
			}
		}
	}
	return nil
}

func parseRect(ctx *model.Context, rectObj types.Object) []float64 {
	rectArray, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(rectArray) != 4 {
		return nil
	}
	coords := make([]float64, 4)
	for i, coord := range rectArray {
		if f, err := ctx.DereferenceNumber(coord); err == nil {
			coords[i] = f
		}
	}
	return coords
}

// FillAcroForm writes the resolved values into the form fields of inPath and
// saves the result to outPath. NeedAppearances is set so viewers regenerate
// the field appearance streams for the new values. Returns the number of
// fields written and any per-field failures.
func FillAcroForm(inPath, outPath string, instructions []mapping.FillInstruction) (int, []WriteFailure, error) {
	ctx, err := api.ReadContextFile(inPath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	dicts, _, err := collectFieldDicts(ctx)
	if err != nil {
		return 0, nil, err
	}

	var failures []WriteFailure
	filled := 0
	for _, inst := range instructions {
		fieldDict, ok := dicts[inst.FieldID]
		if !ok {
			failures = append(failures, WriteFailure{inst.FieldID, fmt.Errorf("field not found in document")})
			continue
		}
		if err := setFieldValue(ctx, fieldDict, inst.Value); err != nil {
			fmt.Printf("Warning: failed to write field %s: %v. Skipping.\n", inst.FieldID, err)
			failures = append(failures, WriteFailure{inst.FieldID, err})
			continue
		}
		filled++
	}

	if err := setNeedAppearances(ctx); err != nil {
		return filled, failures, err
	}
	if err := api.WriteContextFile(ctx, outPath); err != nil {
		return filled, failures, fmt.Errorf("failed to write filled PDF: %w", err)
	}
	return filled, failures, nil
}

func setFieldValue(ctx *model.Context, fieldDict types.Dict, value string) error {
	ft := fieldTypeName(ctx, fieldDict)
	switch ft {
	case "Btn":
		state := "Off"
		if isAffirmative(value) {
			state = "Yes"
		}
		fieldDict["V"] = types.Name(state)
		fieldDict["AS"] = types.Name(state)
	default:
		// Tx, Ch and untyped fields all take a string value.
		fieldDict["V"] = types.StringLiteral(value)
	}
	// Drop the stale appearance stream so NeedAppearances takes effect.
	delete(fieldDict, "AP")
	return nil
}

func fieldTypeName(ctx *model.Context, fieldDict types.Dict) string {
	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, found := fieldDict.Find("Parent"); found {
			if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
				return fieldTypeName(ctx, parentDict)
			}
		}
		return ""
	}
	if name, ok := ftObj.(types.Name); ok {
		return string(name)
	}
	name, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(name)
}

func isAffirmative(value string) bool {
	switch value {
	case "true", "True", "yes", "Yes", "Y", "X", "x", "1", "on", "On":
		return true
	}
	return false
}

func setNeedAppearances(ctx *model.Context) error {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}
	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil || acroFormDict == nil {
		return err
	}
	acroFormDict["NeedAppearances"] = types.Boolean(true)
	return nil
}

// Flatten marks every terminal form field read-only so the filled values can
// no longer be edited. The fields stay in the document; only the editability
// flag changes.
func Flatten(path string) error {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return fmt.Errorf("failed to read PDF context: %w", err)
	}
	dicts, _, err := collectFieldDicts(ctx)
	if err != nil {
		return err
	}
	for _, fieldDict := range dicts {
		var flags types.Integer
		if flagsObj, found := fieldDict.Find("Ff"); found {
			if v, err := ctx.DereferenceInteger(flagsObj); err == nil && v != nil {
				flags = *v
			}
		}
		fieldDict["Ff"] = flags | 1 // bit 1: read-only
	}
	if err := api.WriteContextFile(ctx, path); err != nil {
		return fmt.Errorf("failed to write flattened PDF: %w", err)
	}
	return nil
}
