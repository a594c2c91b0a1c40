package field

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v2"
)

// RuleTable is the versioned noise-filter ruleset. Denylist entries are matched
// as case-insensitive substrings against the raw short identifier; DenyTokens
// entries are matched against whole identifier tokens (camelCase segments,
// trailing digits ignored), so short structural prefixes like "btn" or "ck"
// cannot swallow real words that happen to contain them.
type RuleTable struct {
	Version    string   `yaml:"version"`
	Denylist   []string `yaml:"denylist"`
	DenyTokens []string `yaml:"deny_tokens"`
	MinLength  int      `yaml:"min_length"`
}

// DefaultRules returns the built-in ruleset, covering the structural widget
// vocabulary of XFA/AcroForm generators (subform containers, buttons, barcodes,
// signature lines, date-signed stamps, headers). Generator prefixes that
// collide with ordinary field names ("Form" vs "Information", "Row" vs
// "Borrower", "ck" vs "Checking") live in DenyTokens instead of Denylist.
func DefaultRules() RuleTable {
	return RuleTable{
		Version: "2",
		Denylist: []string{
			"FormMaster", "pageSet", "section", "subform", "border", "table",
			"button", "QRCode", "signature", "SignLine", "CLRPNT",
			"Header", "Footer", "Master", "subSection",
			"image", "#subform", "#pageSet", "BARCOD", "Checkbox",
			"DateSigned", "SignHere",
		},
		DenyTokens: []string{"btn", "Form", "Row", "RB", "ck"},
		MinLength:  3,
	}
}

// LoadRules reads a rule table from a YAML file.
func LoadRules(path string) (RuleTable, error) {
	var table RuleTable
	data, err := os.ReadFile(path)
	if err != nil {
		return table, fmt.Errorf("failed to read rule table: %w", err)
	}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return table, fmt.Errorf("failed to parse rule table: %w", err)
	}
	if len(table.Denylist) == 0 && len(table.DenyTokens) == 0 {
		return table, fmt.Errorf("rule table %s has an empty denylist", path)
	}
	if table.MinLength <= 0 {
		table.MinLength = DefaultRules().MinLength
	}
	return table, nil
}

var indexSuffix = regexp.MustCompile(`\[\d*\]`)

// Normalizer strips index/noise suffixes from raw identifiers and filters out
// structurally irrelevant fields before they reach the classifier. It is a pure
// per-element function over a fixed ruleset: idempotent and order-independent.
type Normalizer struct {
	rules      RuleTable
	denylist   []string // lowercased substrings
	denyTokens []string // lowercased whole tokens
}

// NewNormalizer builds a normalizer from a rule table.
func NewNormalizer(rules RuleTable) *Normalizer {
	n := &Normalizer{rules: rules}
	for _, entry := range rules.Denylist {
		n.denylist = append(n.denylist, strings.ToLower(entry))
	}
	for _, entry := range rules.DenyTokens {
		n.denyTokens = append(n.denyTokens, strings.ToLower(entry))
	}
	return n
}

// Normalize rewrites a raw identifier into its semantic core: positional array
// suffixes like "[0]" are removed, as are underscores, backslashes and
// surrounding whitespace. Normalizing twice yields the same result.
func (n *Normalizer) Normalize(raw string) string {
	s := indexSuffix.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, `\`, "")
	return strings.TrimSpace(s)
}

// Keep reports whether a raw identifier survives the noise filter.
func (n *Normalizer) Keep(raw string) bool {
	lowered := strings.ToLower(raw)
	for _, token := range n.denylist {
		if strings.Contains(lowered, token) {
			return false
		}
	}
	if len(n.denyTokens) > 0 {
		for _, token := range identTokens(raw) {
			token = strings.ToLower(strings.TrimRight(token, "0123456789"))
			for _, deny := range n.denyTokens {
				if token == deny {
					return false
				}
			}
		}
	}
	return len(n.Normalize(raw)) >= n.rules.MinLength
}

// identTokens splits an identifier into its word tokens: separators break
// tokens, as do lower-to-upper camelCase transitions. "btnPrint[0]" yields
// ["btn", "Print", "0"]; digits stay attached to their word.
func identTokens(raw string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	runes := []rune(raw)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]):
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// Apply filters and rewrites a field list, returning new descriptors with the
// Normalized attribute set plus the number of fields dropped as noise. Input
// descriptors are not mutated.
func (n *Normalizer) Apply(fields []Descriptor) (kept []Descriptor, dropped int) {
	for _, f := range fields {
		if !n.Keep(f.ShortID) {
			dropped++
			continue
		}
		enriched := f
		enriched.Normalized = n.Normalize(f.ShortID)
		kept = append(kept, enriched)
	}
	return kept, dropped
}
