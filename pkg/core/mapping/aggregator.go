package mapping

import (
	"pdf_autofill/pkg/core/cdm"
	"pdf_autofill/pkg/core/field"
)

// ChunkOutcome pairs a chunk with its analysis result. Err set means the chunk's
// call failed outright after retries; Results is then ignored. Failed marks a
// chunk whose call failed even when partial results (cache hits) survive, so
// the failure still shows up in the report.
type ChunkOutcome struct {
	Chunk   []field.Descriptor
	Results map[string]FieldResult
	Err     error
	Failed  bool
}

// Assignment relates one primary field to a canonical key; Key is empty for
// primary fields the mapper could not place.
type Assignment struct {
	Field field.Descriptor
	Key   cdm.Key
}

// Conflict records a field observed with two different proposed keys; the
// first-seen assignment was kept.
type Conflict struct {
	FieldID string
	Kept    cdm.Key
	Dropped cdm.Key
}

// Violation records a proposed key outside the available key set. The
// assignment was dropped, never applied.
type Violation struct {
	FieldID string
	Key     cdm.Key
}

// Counters are observability totals; they are not part of the mapping's
// correctness contract.
type Counters struct {
	Seen      int
	Primary   int
	Secondary int
	Mapped    int
	Unmapped  int
}

// Aggregate is the merged outcome of every chunk: the final field-to-key
// mapping (a partial function over fields), classifications for all fields,
// and the conflict/violation/failure record.
type Aggregate struct {
	Assignments     []Assignment
	Classifications map[string]field.Classification
	Conflicts       []Conflict
	Violations      []Violation
	FailedChunks    []int
	Counters        Counters
}

// MappedKeys returns the final field-to-key relation. Multiple fields mapping
// to the same key is legitimate (forms repeat the account number on signature
// pages); the same field never maps to more than one key.
func (a *Aggregate) MappedKeys() map[string]cdm.Key {
	out := make(map[string]cdm.Key)
	for _, asg := range a.Assignments {
		if asg.Key != "" {
			out[asg.Field.ID] = asg.Key
		}
	}
	return out
}

// AggregateOutcomes merges per-chunk results in original field order.
//
// Policy, in order of application per field:
//   - a failed chunk degrades all of its fields to SECONDARY;
//   - a field missing from its chunk's response is SECONDARY (fail-safe);
//   - a proposed key outside availableKeys is stripped and recorded, leaving
//     the field primary-but-unmapped;
//   - a field id seen twice (defended against even though chunks never overlap)
//     keeps its first assignment; a differing second key is recorded as a
//     conflict, never silently overwritten.
func AggregateOutcomes(outcomes []ChunkOutcome, availableKeys []cdm.Key) *Aggregate {
	available := make(map[cdm.Key]bool, len(availableKeys))
	for _, k := range availableKeys {
		available[k] = true
	}

	agg := &Aggregate{Classifications: make(map[string]field.Classification)}
	seen := make(map[string]bool)
	assigned := make(map[string]cdm.Key) // first-seen key per primary field id

	for _, outcome := range outcomes {
		for _, f := range outcome.Chunk {
			var res FieldResult
			if outcome.Err != nil {
				res = FieldResult{Classification: field.Secondary}
			} else if r, ok := outcome.Results[f.ID]; ok {
				res = r
			} else {
				res = FieldResult{Classification: field.Secondary}
			}

			if seen[f.ID] {
				if prev := assigned[f.ID]; res.Key != "" && res.Key != prev {
					switch {
					case !available[res.Key]:
						agg.Violations = append(agg.Violations, Violation{FieldID: f.ID, Key: res.Key})
					case prev != "":
						agg.Conflicts = append(agg.Conflicts, Conflict{FieldID: f.ID, Kept: prev, Dropped: res.Key})
					}
				}
				continue
			}
			seen[f.ID] = true

			agg.Counters.Seen++

			if res.Classification != field.Primary {
				agg.Classifications[f.ID] = field.Secondary
				agg.Counters.Secondary++
				continue
			}

			key := res.Key
			if key != "" && !available[key] {
				agg.Violations = append(agg.Violations, Violation{FieldID: f.ID, Key: key})
				key = ""
			}

			agg.Classifications[f.ID] = field.Primary
			agg.Counters.Primary++
			if key != "" {
				agg.Counters.Mapped++
			} else {
				agg.Counters.Unmapped++
			}
			assigned[f.ID] = key
			agg.Assignments = append(agg.Assignments, Assignment{Field: f, Key: key})
		}
	}

	for i, outcome := range outcomes {
		if outcome.Err != nil || outcome.Failed {
			agg.FailedChunks = append(agg.FailedChunks, i)
		}
	}
	return agg
}
