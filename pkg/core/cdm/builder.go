package cdm

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// PatternTable maps canonical keys to regex patterns matched against normalized
// source-record column names. The table is versioned so it can evolve without
// touching the builder.
type PatternTable struct {
	Version  string              `yaml:"version"`
	Patterns map[string][]string `yaml:"patterns"`
}

// defaultPatterns covers the column naming conventions seen across client tables.
var defaultPatterns = PatternTable{
	Version: "1",
	Patterns: map[string][]string{
		"person.full_name":       {`^(full_?name|name|full_?legal_?name)$`, `^(client_?name|customer_?name)$`},
		"person.first_name":      {`^(first_?name|given_?name|fname)$`},
		"person.middle_name":     {`^(middle_?name|middle_?initial|mname|mi)$`},
		"person.last_name":       {`^(last_?name|surname|family_?name|lname)$`},
		"person.suffix":          {`^(suffix|name_?suffix|jr_?sr)$`},
		"person.ssn":             {`^(ssn|social_?security|tax_?id|ein|tin)$`},
		"person.phone":           {`^(phone|mobile|cell|telephone|contact_?number)$`, `^(phone_?number|mobile_?number)$`},
		"person.phone_extension": {`^(ext|extension|phone_?ext)$`},
		"person.email":           {`^(email|e_?mail|email_?address)$`},
		"person.dob":             {`^(dob|date_?of_?birth|birth_?date|birthdate)$`},
		"person.address":         {`^(address|full_?address|mailing_?address)$`},
		"person.street":          {`^(street|street_?address|address_?line|addr)$`, `^(street_?1|address_?1)$`},
		"person.city":            {`^(city)$`},
		"person.state":           {`^(state|province)$`},
		"person.zip":             {`^(zip|zip_?code|postal_?code|postcode)$`},
		"account.number":         {`^(account_?number|acct_?num|account_?no)$`},
		"account.type":           {`^(account_?type|acct_?type)$`},
		"bank.name":              {`^(bank_?name|institution_?name|financial_?institution)$`},
		"bank.routing":           {`^(routing|routing_?number|aba|aba_?number)$`},
	},
}

// Builder infers canonical keys from arbitrary source-record column names.
type Builder struct {
	rules []builderRule
}

type builderRule struct {
	key      Key
	patterns []*regexp.Regexp
}

// NewBuilder compiles the given pattern table. A nil table uses the built-in defaults.
func NewBuilder(table *PatternTable) (*Builder, error) {
	if table == nil {
		table = &defaultPatterns
	}
	b := &Builder{}
	for key, patterns := range table.Patterns {
		rule := builderRule{key: Key(key)}
		for _, p := range patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q for key %s: %w", p, key, err)
			}
			rule.patterns = append(rule.patterns, re)
		}
		b.rules = append(b.rules, rule)
	}
	// Stable rule order so ambiguous columns always resolve the same way.
	sort.Slice(b.rules, func(i, j int) bool { return b.rules[i].key < b.rules[j].key })
	return b, nil
}

// LoadPatternTable reads a versioned pattern table from a YAML file.
func LoadPatternTable(path string) (*PatternTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern table: %w", err)
	}
	var table PatternTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse pattern table: %w", err)
	}
	if len(table.Patterns) == 0 {
		return nil, fmt.Errorf("pattern table %s contains no patterns", path)
	}
	return &table, nil
}

// InferKey matches a source column name against the pattern table.
func (b *Builder) InferKey(column string) (Key, bool) {
	normalized := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(column)), " ", "_")
	for _, rule := range b.rules {
		for _, re := range rule.patterns {
			if re.MatchString(normalized) {
				return rule.key, true
			}
		}
	}
	return "", false
}

// BuildFromRecord constructs a store from a flat source record. Columns that match
// no pattern are dropped; overrides win over inference and may introduce keys the
// pattern table does not know about.
func (b *Builder) BuildFromRecord(record map[string]string, overrides map[string]Key) *Store {
	values := make(map[Key]string)
	for column, value := range record {
		if key, ok := overrides[column]; ok {
			values[key] = value
			continue
		}
		if key, ok := b.InferKey(column); ok {
			values[key] = value
		}
	}
	return NewStore(values)
}

// SampleStore returns a store with representative demo data for the CLI default path.
func SampleStore() *Store {
	return NewStore(map[Key]string{
		"person.full_name":       "Jane Marie Doe",
		"person.first_name":      "Jane",
		"person.middle_name":     "Marie",
		"person.last_name":       "Doe",
		"person.suffix":          "Jr.",
		"person.ssn":             "123-45-6789",
		"person.phone":           "767-788-3272",
		"person.phone_extension": "123",
		"person.address":         "123 Main Street, New York, NY",
		"person.street":          "123 Main Street",
		"person.city":            "New York",
		"person.state":           "NY",
		"person.zip":             "10001",
		"account.number":         "SCHW12345",
		"account.type":           "Individual",
		"bank.name":              "Chase Bank",
	})
}
