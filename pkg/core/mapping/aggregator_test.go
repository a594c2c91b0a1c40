package mapping

import (
	"fmt"
	"testing"

	"pdf_autofill/pkg/core/cdm"
	"pdf_autofill/pkg/core/field"
)

func TestAggregateMergesChunksInOrder(t *testing.T) {
	chunk1 := descriptors("fldA", "fldB")
	chunk2 := descriptors("fldC")
	outcomes := []ChunkOutcome{
		{Chunk: chunk1, Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "person.first_name"},
			"fldB": {Classification: field.Secondary},
		}},
		{Chunk: chunk2, Results: map[string]FieldResult{
			"fldC": {Classification: field.Primary, Key: "account.number"},
		}},
	}

	agg := AggregateOutcomes(outcomes, testKeys())

	if len(agg.Assignments) != 2 {
		t.Fatalf("Expected 2 assignments, got %d", len(agg.Assignments))
	}
	if agg.Assignments[0].Field.ID != "fldA" || agg.Assignments[1].Field.ID != "fldC" {
		t.Errorf("Assignments out of order: %s, %s", agg.Assignments[0].Field.ID, agg.Assignments[1].Field.ID)
	}
	if agg.Counters.Primary != 2 || agg.Counters.Secondary != 1 || agg.Counters.Mapped != 2 {
		t.Errorf("Counters: %+v", agg.Counters)
	}
	if len(agg.Conflicts) != 0 || len(agg.Violations) != 0 || len(agg.FailedChunks) != 0 {
		t.Errorf("Unexpected anomalies: %+v", agg)
	}
}

func TestAggregateFailedChunkDegradesToSecondary(t *testing.T) {
	outcomes := []ChunkOutcome{
		{Chunk: descriptors("fldA"), Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "person.ssn"},
		}},
		{Chunk: descriptors("fldB", "fldC"), Err: fmt.Errorf("analysis failed")},
	}

	agg := AggregateOutcomes(outcomes, testKeys())

	if agg.Classifications["fldB"] != field.Secondary || agg.Classifications["fldC"] != field.Secondary {
		t.Error("Fields of a failed chunk must be SECONDARY")
	}
	if agg.Classifications["fldA"] != field.Primary {
		t.Error("Healthy chunk must be unaffected by another chunk's failure")
	}
	if len(agg.FailedChunks) != 1 || agg.FailedChunks[0] != 1 {
		t.Errorf("FailedChunks = %v, want [1]", agg.FailedChunks)
	}
}

func TestAggregateMissingFieldIsSecondary(t *testing.T) {
	outcomes := []ChunkOutcome{
		{Chunk: descriptors("fldA", "fldB"), Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "person.city"},
		}},
	}

	agg := AggregateOutcomes(outcomes, []cdm.Key{"person.city"})

	if agg.Classifications["fldB"] != field.Secondary {
		t.Error("Field absent from results must be SECONDARY")
	}
	if agg.Counters.Seen != 2 {
		t.Errorf("Seen = %d, want 2", agg.Counters.Seen)
	}
}

func TestAggregateStripsUnavailableKeys(t *testing.T) {
	outcomes := []ChunkOutcome{
		{Chunk: descriptors("fldA"), Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "person.fax"},
		}},
	}

	agg := AggregateOutcomes(outcomes, testKeys())

	if len(agg.Violations) != 1 || agg.Violations[0].Key != "person.fax" {
		t.Fatalf("Violations = %+v", agg.Violations)
	}
	// The field stays primary but unmapped; the invented key never survives.
	if agg.Classifications["fldA"] != field.Primary {
		t.Error("Field with stripped key must stay primary")
	}
	if len(agg.Assignments) != 1 || agg.Assignments[0].Key != "" {
		t.Errorf("Assignments = %+v", agg.Assignments)
	}
	if agg.Counters.Unmapped != 1 || agg.Counters.Mapped != 0 {
		t.Errorf("Counters: %+v", agg.Counters)
	}
}

func TestAggregateDuplicateFieldKeepsFirstAndRecordsConflict(t *testing.T) {
	// Chunks never overlap in normal operation; the policy is defended anyway.
	dup := descriptors("fldA")
	outcomes := []ChunkOutcome{
		{Chunk: dup, Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "person.first_name"},
		}},
		{Chunk: dup, Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "person.last_name"},
		}},
	}

	agg := AggregateOutcomes(outcomes, testKeys())

	if len(agg.Assignments) != 1 || agg.Assignments[0].Key != "person.first_name" {
		t.Fatalf("First assignment must win: %+v", agg.Assignments)
	}
	if len(agg.Conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d", len(agg.Conflicts))
	}
	c := agg.Conflicts[0]
	if c.Kept != "person.first_name" || c.Dropped != "person.last_name" {
		t.Errorf("Conflict = %+v", c)
	}
	if agg.Counters.Seen != 1 {
		t.Errorf("Duplicate must not double-count: Seen = %d", agg.Counters.Seen)
	}
}

func TestAggregateManyFieldsOneKeyIsNotAConflict(t *testing.T) {
	// Forms repeat the account number on every signature page.
	outcomes := []ChunkOutcome{
		{Chunk: descriptors("acct_p1", "acct_p4"), Results: map[string]FieldResult{
			"acct_p1": {Classification: field.Primary, Key: "account.number"},
			"acct_p4": {Classification: field.Primary, Key: "account.number"},
		}},
	}

	agg := AggregateOutcomes(outcomes, testKeys())

	if len(agg.Conflicts) != 0 {
		t.Errorf("Many-to-one mapping is legitimate, got conflicts %+v", agg.Conflicts)
	}
	if agg.Counters.Mapped != 2 {
		t.Errorf("Mapped = %d, want 2", agg.Counters.Mapped)
	}
}

func TestMappedKeysOmitsUnmappedFields(t *testing.T) {
	outcomes := []ChunkOutcome{
		{Chunk: descriptors("fldA", "fldB"), Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "person.ssn"},
			"fldB": {Classification: field.Primary},
		}},
	}

	agg := AggregateOutcomes(outcomes, testKeys())
	mapped := agg.MappedKeys()

	if len(mapped) != 1 || mapped["fldA"] != "person.ssn" {
		t.Errorf("MappedKeys = %v", mapped)
	}
}

func TestAggregateDuplicateAfterSecondaryIsNotAConflict(t *testing.T) {
	// A key proposed for a field whose first occurrence was secondary has
	// nothing to conflict with; the first result still wins.
	dup := descriptors("fldA")
	outcomes := []ChunkOutcome{
		{Chunk: dup, Results: map[string]FieldResult{
			"fldA": {Classification: field.Secondary},
		}},
		{Chunk: dup, Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "person.last_name"},
		}},
	}

	agg := AggregateOutcomes(outcomes, testKeys())

	if agg.Classifications["fldA"] != field.Secondary {
		t.Errorf("Classification = %v, want Secondary", agg.Classifications["fldA"])
	}
	if len(agg.Conflicts) != 0 {
		t.Errorf("Conflicts = %+v, want none", agg.Conflicts)
	}
	if len(agg.Assignments) != 0 {
		t.Errorf("Assignments = %+v, want none", agg.Assignments)
	}
}

func TestAggregateDuplicateWithUnknownKeyIsAViolation(t *testing.T) {
	dup := descriptors("fldA")
	outcomes := []ChunkOutcome{
		{Chunk: dup, Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "person.first_name"},
		}},
		{Chunk: dup, Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "account.iban"},
		}},
	}

	agg := AggregateOutcomes(outcomes, testKeys())

	if len(agg.Assignments) != 1 || agg.Assignments[0].Key != "person.first_name" {
		t.Fatalf("First assignment must win: %+v", agg.Assignments)
	}
	if len(agg.Violations) != 1 || agg.Violations[0].Key != "account.iban" {
		t.Errorf("Violations = %+v, want the unknown key recorded", agg.Violations)
	}
	if len(agg.Conflicts) != 0 {
		t.Errorf("Conflicts = %+v, want none", agg.Conflicts)
	}
}

func TestAggregatePartialFailureLandsInFailedChunks(t *testing.T) {
	outcomes := []ChunkOutcome{
		{Chunk: descriptors("fldA"), Results: map[string]FieldResult{
			"fldA": {Classification: field.Primary, Key: "person.first_name"},
		}},
		{
			Chunk: descriptors("fldB", "fldC"),
			Results: map[string]FieldResult{
				"fldB": {Classification: field.Primary, Key: "person.last_name"},
			},
			Failed: true,
		},
	}

	agg := AggregateOutcomes(outcomes, testKeys())

	if len(agg.FailedChunks) != 1 || agg.FailedChunks[0] != 1 {
		t.Errorf("FailedChunks = %v, want [1]", agg.FailedChunks)
	}
	// Partial results from a failed chunk are still honored.
	if agg.Classifications["fldB"] != field.Primary {
		t.Errorf("fldB = %v, want Primary", agg.Classifications["fldB"])
	}
	if agg.Classifications["fldC"] != field.Secondary {
		t.Errorf("fldC = %v, want Secondary", agg.Classifications["fldC"])
	}
}
