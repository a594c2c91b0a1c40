package models

import "fmt"

// FillSummary is the user-visible outcome of one fill run: enough counters to
// diagnose a low fill rate without re-running with verbose tracing.
type FillSummary struct {
	FieldsFound    int `json:"fields_found"`
	NoiseFiltered  int `json:"noise_filtered"`
	Primary        int `json:"primary"`
	Secondary      int `json:"secondary"`
	Mapped         int `json:"mapped"`
	Unmapped       int `json:"unmapped"`
	Filled         int `json:"filled"`
	SkippedNoValue int `json:"skipped_no_value"`
	WriteFailed    int `json:"write_failed"`
	FailedChunks   int `json:"failed_chunks"`
	Conflicts      int `json:"conflicts"`
	Violations     int `json:"violations"`
	CacheHits      int `json:"cache_hits"`
}

// FillRate is filled over mapped, as a percentage.
func (s FillSummary) FillRate() float64 {
	if s.Mapped == 0 {
		return 0
	}
	return float64(s.Filled) / float64(s.Mapped) * 100
}

// Print writes the summary block to stdout.
func (s FillSummary) Print() {
	fmt.Println("\n--- Fill Summary ---")
	fmt.Printf("Fields found:        %d\n", s.FieldsFound)
	fmt.Printf("Filtered as noise:   %d\n", s.NoiseFiltered)
	fmt.Printf("Primary:             %d\n", s.Primary)
	fmt.Printf("Secondary (skipped): %d\n", s.Secondary)
	fmt.Printf("Mapped to CDM:       %d\n", s.Mapped)
	fmt.Printf("Unmapped:            %d\n", s.Unmapped)
	fmt.Printf("Filled:              %d\n", s.Filled)
	fmt.Printf("Skipped (no value):  %d\n", s.SkippedNoValue)
	if s.WriteFailed > 0 {
		fmt.Printf("Write failures:      %d\n", s.WriteFailed)
	}
	if s.FailedChunks > 0 {
		fmt.Printf("Failed chunks:       %d\n", s.FailedChunks)
	}
	if s.Conflicts > 0 {
		fmt.Printf("Conflicts:           %d\n", s.Conflicts)
	}
	if s.Violations > 0 {
		fmt.Printf("Key violations:      %d\n", s.Violations)
	}
	if s.CacheHits > 0 {
		fmt.Printf("Cache hits:          %d\n", s.CacheHits)
	}
	fmt.Printf("Fill rate:           %.1f%%\n", s.FillRate())
}
