package mapping

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"pdf_autofill/pkg/core/cdm"
	"pdf_autofill/pkg/core/field"
)

// RuleAnalyzer is the deterministic in-repo FieldAnalyzer: pure lexical rules,
// no network. It exists so the pipeline around the reasoning service (chunking,
// aggregation, conflict policy, fail-safe defaults) is testable offline, and it
// doubles as a dry-run analyzer for the CLI.
//
// Like the model it stands in for, it defaults to SECONDARY whenever the
// subject is ambiguous.
type RuleAnalyzer struct {
	Vocab VocabTable
}

var _ FieldAnalyzer = (*RuleAnalyzer)(nil)

// NewRuleAnalyzer builds a rule analyzer with the given vocabulary.
func NewRuleAnalyzer(vocab VocabTable) *RuleAnalyzer {
	return &RuleAnalyzer{Vocab: vocab}
}

func (a *RuleAnalyzer) AnalyzeChunk(ctx context.Context, req ChunkRequest, availableKeys []cdm.Key) (map[string]FieldResult, error) {
	results := make(map[string]FieldResult, len(req.Fields))
	for _, f := range req.Fields {
		text := f.ShortID + " " + f.Normalized + " " + f.Label
		switch {
		case a.Vocab.LooksSecondary(text):
			results[f.ID] = FieldResult{Classification: field.Secondary}
		case req.PageText != "" && a.Vocab.LooksSecondary(req.PageText) && !a.Vocab.LooksPrimary(text):
			// Page-level context: a terse field on a page headed by
			// secondary-party language stays unfilled. This is why chunk-size
			// monotonicity holds only for AcroForm mode, where PageText is empty.
			results[f.ID] = FieldResult{Classification: field.Secondary}
		default:
			res := FieldResult{Classification: field.Primary}
			if key, ok := matchKey(text, availableKeys); ok {
				res.Key = key
			}
			results[f.ID] = res
		}
	}
	return results, nil
}

// keySynonyms lists lexical candidates per canonical attribute, longest-match
// wins. Mirrors the pattern hints the prompt gives the real model.
var keySynonyms = map[string][]string{
	"first_name":      {"firstname", "first", "fname", "givenname"},
	"last_name":       {"lastname", "last", "surname", "lname"},
	"middle_name":     {"middlename", "middle"},
	"full_name":       {"fullname", "legalname"},
	"suffix":          {"suffix"},
	"ssn":             {"socialsecurity", "ssn", "taxid"},
	"phone":           {"daytimephone", "telephone", "phone", "mobile"},
	"phone_extension": {"extension", "ext"},
	"email":           {"email"},
	"dob":             {"dateofbirth", "birthdate", "dob"},
	"address":         {"streetaddress", "address"},
	"street":          {"street"},
	"city":            {"city"},
	"state":           {"state"},
	"zip":             {"zipcode", "postalcode", "zip"},
	"number":          {"accountnumber", "acctnum", "accountno"},
	"type":            {"accounttype", "accttype"},
	"name":            {"bankname", "institution"},
	"routing":         {"routingnumber", "routing", "aba"},
	"employer_name":   {"employerplan", "employer"},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// matchKey finds the available key whose synonyms best match the field text.
// Candidates match on containment, tolerating the last couple of characters
// being truncated (XFA generators cut long names, e.g. "SchwabAccountNumbe").
func matchKey(text string, availableKeys []cdm.Key) (cdm.Key, bool) {
	needle := nonAlnum.ReplaceAllString(strings.ToLower(text), "")

	keys := append([]cdm.Key(nil), availableKeys...)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var best cdm.Key
	bestLen := 0
	for _, key := range keys {
		attr := string(key)
		if i := strings.Index(attr, "."); i >= 0 {
			attr = attr[i+1:]
		}
		candidates := keySynonyms[attr]
		if candidates == nil {
			candidates = []string{nonAlnum.ReplaceAllString(attr, "")}
		}
		for _, cand := range candidates {
			if candidateMatches(needle, cand) && len(cand) > bestLen {
				best = key
				bestLen = len(cand)
			}
		}
	}
	return best, bestLen > 0
}

func candidateMatches(needle, cand string) bool {
	if strings.Contains(needle, cand) {
		return true
	}
	if len(cand) >= 8 && strings.Contains(needle, cand[:len(cand)-2]) {
		return true
	}
	return false
}
