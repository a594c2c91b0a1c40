package mapping

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"pdf_autofill/pkg/core/cdm"
	"pdf_autofill/pkg/core/field"
)

// systemPrompt instructs the model on the combined classify-and-map task.
const systemPrompt = "You are a precise financial form analyzer. Return only valid JSON. " +
	"Classify fields as PRIMARY or SECONDARY and map PRIMARY fields to CDM keys."

// maxPageTextLen bounds how much surrounding page text goes into one request.
const maxPageTextLen = 3000

type promptField struct {
	FieldID string  `json:"field_id"`
	Label   string  `json:"label,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// buildUserPrompt renders one chunk into the combined classification/mapping
// prompt. Available keys are grouped by namespace so the model sees the key
// space as categories rather than a flat list.
func buildUserPrompt(req ChunkRequest, fields []field.Descriptor, availableKeys []cdm.Key) string {
	promptFields := make([]promptField, 0, len(fields))
	for _, f := range fields {
		promptFields = append(promptFields, promptField{
			FieldID: f.ShortID,
			Label:   f.Label,
			X:       f.X,
			Y:       f.Y,
		})
	}
	fieldsJSON, _ := json.MarshalIndent(promptFields, "", "  ")

	grouped := cdm.KeysByNamespace(availableKeys)
	namespaces := make([]string, 0, len(grouped))
	for ns := range grouped {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	var keyLines []string
	for _, ns := range namespaces {
		parts := make([]string, 0, len(grouped[ns]))
		for _, k := range grouped[ns] {
			parts = append(parts, string(k))
		}
		keyLines = append(keyLines, fmt.Sprintf("%s: %s", ns, strings.Join(parts, ", ")))
	}

	pageText := req.PageText
	if len(pageText) > maxPageTextLen {
		pageText = pageText[:maxPageTextLen] + "..."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "FORM TYPE: %s\n\n", req.FormType)
	if pageText != "" {
		fmt.Fprintf(&sb, "PAGE %d TEXT:\n%s\n\n", req.Page, pageText)
	}
	fmt.Fprintf(&sb, "FIELDS TO CLASSIFY (reading order):\n%s\n\n", fieldsJSON)
	fmt.Fprintf(&sb, "CDM KEYS:\n%s\n\n", strings.Join(keyLines, "\n"))

	sb.WriteString(`TASK: For each field, determine:
1. ENTITY: Is this the PRIMARY account holder or a SECONDARY party (beneficiary/spouse/authorized/trustee)?
   - Check the page text for section context
   - Check the field id for hints ("benef", "spouse", "auth" = SECONDARY)
   - Nearby fields usually belong to the same entity
   - If uncertain, choose SECONDARY

2. CDM MAPPING (PRIMARY fields only):
   - FirstName/Given -> person.first_name
   - LastName/Surname -> person.last_name
   - SSN/TaxID -> person.ssn
   - Phone/Tel -> person.phone
   - Address/Street -> person.address
   - City -> person.city, State -> person.state, ZIP -> person.zip
   - AccountNum/AcctNum -> account.number
   - BankName -> bank.name
   - Only propose keys from the CDM KEYS list above
   - If SECONDARY or no key matches, use null

RULES:
- Beneficiary/Spouse/Authorized sections are SECONDARY
- A field id containing "benef"/"spouse"/"auth"/"trustee" is SECONDARY
- When uncertain, choose SECONDARY

OUTPUT (valid JSON only):
{
  "FirstName": {"entity": "PRIMARY", "cdm_key": "person.first_name"},
  "benef_FirstName": {"entity": "SECONDARY", "cdm_key": null}
}

`)
	fmt.Fprintf(&sb, "Return JSON for ALL %d fields.\n", len(promptFields))
	return sb.String()
}
