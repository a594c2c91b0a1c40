package field

import "testing"

func TestNormalizeStripsIndexSuffixes(t *testing.T) {
	n := NewNormalizer(DefaultRules())

	cases := map[string]string{
		"AccountNumber[0]":   "AccountNumber",
		"FirstName[12]":      "FirstName",
		"Social_Security[0]": "SocialSecurity",
		`Last\Name`:          "LastName",
		"  City  ":           "City",
		"Plain":              "Plain",
	}
	for raw, want := range cases {
		if got := n.Normalize(raw); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := NewNormalizer(DefaultRules())

	inputs := []string{"AccountNumber[0]", "First_Name[1]", "City", `A\B[3]`}
	for _, raw := range inputs {
		once := n.Normalize(raw)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", raw, once, twice)
		}
	}
}

func TestKeepFiltersDenylistAndShortNames(t *testing.T) {
	n := NewNormalizer(DefaultRules())

	dropped := []string{
		"FormMaster[0]",
		"#subform[3]",
		"btnSubmit",
		"QRCode[0]",
		"signature_line",
		"DateSigned[0]",
		"ab", // below min length
	}
	for _, raw := range dropped {
		if n.Keep(raw) {
			t.Errorf("Keep(%q) = true, want false", raw)
		}
	}

	kept := []string{"FirstName[0]", "AccountNumber", "SocialSecurityNumb"}
	for _, raw := range kept {
		if !n.Keep(raw) {
			t.Errorf("Keep(%q) = false, want true", raw)
		}
	}
}

func TestApplyEnrichesWithoutMutating(t *testing.T) {
	n := NewNormalizer(DefaultRules())

	fields := []Descriptor{
		NewDescriptor("form1[0].#subform[0].FirstName[0]"),
		NewDescriptor("form1[0].#subform[0].btnPrint[0]"),
		NewDescriptor("form1[0].page2[0].AccountNumber[0]"),
	}

	kept, dropped := n.Apply(fields)

	if len(kept) != 2 || dropped != 1 {
		t.Fatalf("Apply returned %d kept, %d dropped; want 2, 1", len(kept), dropped)
	}
	if kept[0].Normalized != "FirstName" {
		t.Errorf("Expected Normalized 'FirstName', got %q", kept[0].Normalized)
	}
	if kept[1].Normalized != "AccountNumber" {
		t.Errorf("Expected Normalized 'AccountNumber', got %q", kept[1].Normalized)
	}
	// Inputs must stay untouched.
	for _, f := range fields {
		if f.Normalized != "" {
			t.Errorf("Apply mutated input descriptor %q", f.ID)
		}
	}
}

func TestShortIDFromNestedName(t *testing.T) {
	d := NewDescriptor("form1[0].#subform[2].SchwabAccountNumbe[0]")
	if d.ShortID != "SchwabAccountNumbe[0]" {
		t.Errorf("Expected ShortID 'SchwabAccountNumbe[0]', got %q", d.ShortID)
	}
}

func TestKeepMatchesShortPrefixesAsTokens(t *testing.T) {
	n := NewNormalizer(DefaultRules())

	// Real data fields that merely contain a structural prefix must survive.
	kept := []string{
		"EmployerInformation[0]",
		"BorrowerName[0]",
		"Suburb[0]",
		"CheckingAccountNumber[0]",
	}
	for _, raw := range kept {
		if !n.Keep(raw) {
			t.Errorf("Keep(%q) = false, want true", raw)
		}
	}

	// Generator tokens still go, including with trailing counters.
	dropped := []string{
		"form1[0]",
		"Form[0]",
		"Row3[0]",
		"RB_married",
		"ck1[0]",
		"btnPrint[0]",
	}
	for _, raw := range dropped {
		if n.Keep(raw) {
			t.Errorf("Keep(%q) = true, want false", raw)
		}
	}
}

func TestIdentTokens(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"btnPrint[0]", []string{"btn", "Print", "0"}},
		{"RB_married", []string{"RB", "married"}},
		{"CheckingAccountNumber", []string{"Checking", "Account", "Number"}},
		{"Row3", []string{"Row3"}},
	}
	for _, tt := range tests {
		got := identTokens(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("identTokens(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("identTokens(%q) = %v, want %v", tt.raw, got, tt.want)
				break
			}
		}
	}
}
