package mapping

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"pdf_autofill/pkg/core/cdm"
)

// VocabTable is the versioned subject-vocabulary ruleset: terms that signal the
// primary subject vs. a secondary party, plus an alias table that maps
// well-known identifier substrings straight to canonical keys without a
// reasoning-service round trip.
type VocabTable struct {
	Version        string            `yaml:"version"`
	PrimaryTerms   []string          `yaml:"primary_terms"`
	SecondaryTerms []string          `yaml:"secondary_terms"`
	Aliases        map[string]string `yaml:"aliases"`
}

// DefaultVocab returns the built-in vocabulary for financial account forms.
func DefaultVocab() VocabTable {
	return VocabTable{
		Version: "1",
		PrimaryTerms: []string{
			"account holder", "accountholder", "applicant", "your", "owner",
			"participant", "client", "primary",
		},
		SecondaryTerms: []string{
			"beneficiary", "benef", "spouse", "joint", "trustee", "custodian",
			"authorized", "auth rep", "receiving firm", "guardian", "power of attorney",
			"third party", "witness",
		},
		Aliases: map[string]string{
			"FirstName":          "person.first_name",
			"LastName":           "person.last_name",
			"MiddleName":         "person.middle_name",
			"SocialSecurityNumb": "person.ssn",
			"DaytimePhone":       "person.phone",
			"StreetAddress":      "person.address",
			"ZipCode":            "person.zip",
			"AccountNumber":      "account.number",
			"AccountType":        "account.type",
			"BankName":           "bank.name",
			"RoutingNumber":      "bank.routing",
		},
	}
}

// LoadVocab reads a vocabulary table from a YAML file.
func LoadVocab(path string) (VocabTable, error) {
	var table VocabTable
	data, err := os.ReadFile(path)
	if err != nil {
		return table, fmt.Errorf("failed to read vocab table: %w", err)
	}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return table, fmt.Errorf("failed to parse vocab table: %w", err)
	}
	return table, nil
}

// LooksSecondary reports whether the text mentions a secondary-party term.
func (v VocabTable) LooksSecondary(text string) bool {
	lowered := strings.ToLower(text)
	for _, term := range v.SecondaryTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

// LooksPrimary reports whether the text mentions a primary-subject term.
func (v VocabTable) LooksPrimary(text string) bool {
	lowered := strings.ToLower(text)
	for _, term := range v.PrimaryTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

// AliasKey returns the canonical key for an identifier that contains a known
// alias substring. Identifiers that also carry secondary-party vocabulary never
// alias-match: "benef_FirstName" must not fast-path to the primary subject.
func (v VocabTable) AliasKey(identifier string) (cdm.Key, bool) {
	if v.LooksSecondary(identifier) {
		return "", false
	}
	lowered := strings.ToLower(identifier)
	// Longest matching alias wins, with a lexicographic tie-break, so the
	// result never depends on map iteration order.
	var bestAlias string
	var bestKey cdm.Key
	for alias, key := range v.Aliases {
		if !strings.Contains(lowered, strings.ToLower(alias)) {
			continue
		}
		if len(alias) > len(bestAlias) || (len(alias) == len(bestAlias) && alias < bestAlias) {
			bestAlias = alias
			bestKey = cdm.Key(key)
		}
	}
	return bestKey, bestAlias != ""
}
