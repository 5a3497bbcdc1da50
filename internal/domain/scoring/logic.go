package scoring

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Logic is a question's scoring rule. Exactly one variant is set:
// a flat bucket-to-score mapping, or a list of age brackets each carrying
// its own bucket mapping. It is stored as JSONB and validated into this
// shape on load; the calculator never sees free-form JSON.
type Logic struct {
	Buckets  map[string]int `json:"buckets,omitempty"`
	Brackets []Bracket      `json:"brackets,omitempty"`
}

// Bracket is an age range with its own bucket mapping. Ranges are
// lower-inclusive, upper-exclusive: a child aged exactly MaxMonths falls
// into the next bracket. Adjacent brackets therefore cover every age
// exactly once.
type Bracket struct {
	MinMonths int            `json:"min_months"`
	MaxMonths int            `json:"max_months"`
	Buckets   map[string]int `json:"buckets"`
}

// ParseLogic decodes and validates a scoring rule from its stored JSON form.
func ParseLogic(raw []byte) (*Logic, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var l Logic
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("decode scoring logic: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks the rule against the known shape: exactly one variant,
// non-empty bucket maps, well-formed non-overlapping brackets.
func (l *Logic) Validate() error {
	hasBuckets := len(l.Buckets) > 0
	hasBrackets := len(l.Brackets) > 0

	if hasBuckets == hasBrackets {
		return fmt.Errorf("scoring logic must define exactly one of buckets or brackets")
	}

	if hasBuckets {
		return nil
	}

	sorted := make([]Bracket, len(l.Brackets))
	copy(sorted, l.Brackets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinMonths < sorted[j].MinMonths })

	for i, b := range sorted {
		if b.MinMonths < 0 {
			return fmt.Errorf("bracket %d: min_months must be non-negative, got %d", i, b.MinMonths)
		}
		if b.MaxMonths <= b.MinMonths {
			return fmt.Errorf("bracket %d: max_months %d must exceed min_months %d", i, b.MaxMonths, b.MinMonths)
		}
		if len(b.Buckets) == 0 {
			return fmt.Errorf("bracket %d: empty bucket mapping", i)
		}
		if i > 0 && b.MinMonths < sorted[i-1].MaxMonths {
			return fmt.Errorf("brackets [%d,%d) and [%d,%d) overlap",
				sorted[i-1].MinMonths, sorted[i-1].MaxMonths, b.MinMonths, b.MaxMonths)
		}
	}
	return nil
}

// ResolveProtocol returns the bucket mapping applicable to the given age.
// The second return is false when no bracket covers the age; that is an
// explicit no-coverage outcome, not an error.
func ResolveProtocol(l *Logic, ageMonths int) (map[string]int, bool) {
	if l == nil {
		return nil, false
	}
	if len(l.Buckets) > 0 {
		return l.Buckets, true
	}
	for _, b := range l.Brackets {
		if ageMonths >= b.MinMonths && ageMonths < b.MaxMonths {
			return b.Buckets, true
		}
	}
	return nil, false
}

// ResolveScore looks up the score for an answer bucket under the
// age-resolved protocol.
func ResolveScore(l *Logic, ageMonths int, bucket string) (int, bool) {
	protocol, ok := ResolveProtocol(l, ageMonths)
	if !ok {
		return 0, false
	}
	score, ok := protocol[bucket]
	return score, ok
}

// MaxScore returns the highest score obtainable from the rule under the
// age-resolved protocol.
func MaxScore(l *Logic, ageMonths int) (int, bool) {
	protocol, ok := ResolveProtocol(l, ageMonths)
	if !ok || len(protocol) == 0 {
		return 0, false
	}
	max := 0
	first := true
	for _, s := range protocol {
		if first || s > max {
			max = s
			first = false
		}
	}
	return max, true
}
