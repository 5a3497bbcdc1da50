package scoring

import (
	"testing"
)

func TestParseLogic_FlatBuckets(t *testing.T) {
	raw := []byte(`{"buckets": {"yes": 4, "sometimes": 2, "no": 0}}`)
	l, err := ParseLogic(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l.Buckets) != 3 {
		t.Errorf("expected 3 buckets, got %d", len(l.Buckets))
	}
	if l.Buckets["yes"] != 4 {
		t.Errorf("expected yes=4, got %d", l.Buckets["yes"])
	}
}

func TestParseLogic_Brackets(t *testing.T) {
	raw := []byte(`{"brackets": [
		{"min_months": 0, "max_months": 24, "buckets": {"yes": 2, "no": 0}},
		{"min_months": 24, "max_months": 60, "buckets": {"yes": 4, "no": 0}}
	]}`)
	l, err := ParseLogic(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l.Brackets) != 2 {
		t.Errorf("expected 2 brackets, got %d", len(l.Brackets))
	}
}

func TestParseLogic_Empty(t *testing.T) {
	l, err := ParseLogic(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l != nil {
		t.Error("expected nil logic for empty input")
	}
}

func TestValidate_RejectsBothVariants(t *testing.T) {
	l := &Logic{
		Buckets:  map[string]int{"yes": 1},
		Brackets: []Bracket{{MinMonths: 0, MaxMonths: 12, Buckets: map[string]int{"yes": 1}}},
	}
	if err := l.Validate(); err == nil {
		t.Error("expected error for both variants set")
	}
}

func TestValidate_RejectsNeitherVariant(t *testing.T) {
	l := &Logic{}
	if err := l.Validate(); err == nil {
		t.Error("expected error for empty logic")
	}
}

func TestValidate_RejectsOverlappingBrackets(t *testing.T) {
	l := &Logic{Brackets: []Bracket{
		{MinMonths: 0, MaxMonths: 24, Buckets: map[string]int{"yes": 1}},
		{MinMonths: 18, MaxMonths: 36, Buckets: map[string]int{"yes": 2}},
	}}
	if err := l.Validate(); err == nil {
		t.Error("expected error for overlapping brackets")
	}
}

func TestValidate_RejectsInvertedBracket(t *testing.T) {
	l := &Logic{Brackets: []Bracket{
		{MinMonths: 24, MaxMonths: 24, Buckets: map[string]int{"yes": 1}},
	}}
	if err := l.Validate(); err == nil {
		t.Error("expected error for zero-width bracket")
	}
}

func TestValidate_RejectsEmptyBracketBuckets(t *testing.T) {
	l := &Logic{Brackets: []Bracket{
		{MinMonths: 0, MaxMonths: 24},
	}}
	if err := l.Validate(); err == nil {
		t.Error("expected error for bracket with no buckets")
	}
}

func TestResolveProtocol_Flat(t *testing.T) {
	l := &Logic{Buckets: map[string]int{"yes": 4}}
	protocol, ok := ResolveProtocol(l, 30)
	if !ok {
		t.Fatal("expected coverage for flat mapping at any age")
	}
	if protocol["yes"] != 4 {
		t.Errorf("expected yes=4, got %d", protocol["yes"])
	}
}

func TestResolveProtocol_BracketBoundary(t *testing.T) {
	l := &Logic{Brackets: []Bracket{
		{MinMonths: 0, MaxMonths: 24, Buckets: map[string]int{"yes": 2}},
		{MinMonths: 24, MaxMonths: 60, Buckets: map[string]int{"yes": 4}},
	}}

	// Lower-inclusive, upper-exclusive: age 24 lands in the second bracket.
	protocol, ok := ResolveProtocol(l, 24)
	if !ok {
		t.Fatal("expected coverage at boundary")
	}
	if protocol["yes"] != 4 {
		t.Errorf("expected boundary age to land in upper bracket, got yes=%d", protocol["yes"])
	}

	protocol, ok = ResolveProtocol(l, 23)
	if !ok {
		t.Fatal("expected coverage at 23 months")
	}
	if protocol["yes"] != 2 {
		t.Errorf("expected 23 months in lower bracket, got yes=%d", protocol["yes"])
	}
}

func TestResolveProtocol_NoCoverage(t *testing.T) {
	l := &Logic{Brackets: []Bracket{
		{MinMonths: 0, MaxMonths: 24, Buckets: map[string]int{"yes": 2}},
	}}
	if _, ok := ResolveProtocol(l, 60); ok {
		t.Error("expected no coverage for age outside all brackets")
	}
}

func TestResolveProtocol_NilLogic(t *testing.T) {
	if _, ok := ResolveProtocol(nil, 12); ok {
		t.Error("expected no coverage for nil logic")
	}
}

func TestResolveScore(t *testing.T) {
	l := &Logic{Buckets: map[string]int{"yes": 4, "no": 0}}

	score, ok := ResolveScore(l, 12, "yes")
	if !ok || score != 4 {
		t.Errorf("expected (4, true), got (%d, %v)", score, ok)
	}

	if _, ok := ResolveScore(l, 12, "maybe"); ok {
		t.Error("expected no coverage for unknown bucket")
	}
}

func TestMaxScore(t *testing.T) {
	l := &Logic{Buckets: map[string]int{"always": 4, "sometimes": 2, "never": 0}}
	max, ok := MaxScore(l, 12)
	if !ok || max != 4 {
		t.Errorf("expected (4, true), got (%d, %v)", max, ok)
	}
}

func TestMaxScore_PerBracket(t *testing.T) {
	l := &Logic{Brackets: []Bracket{
		{MinMonths: 0, MaxMonths: 24, Buckets: map[string]int{"yes": 2, "no": 0}},
		{MinMonths: 24, MaxMonths: 60, Buckets: map[string]int{"yes": 4, "no": 0}},
	}}

	max, ok := MaxScore(l, 12)
	if !ok || max != 2 {
		t.Errorf("expected max 2 in lower bracket, got (%d, %v)", max, ok)
	}

	max, ok = MaxScore(l, 36)
	if !ok || max != 4 {
		t.Errorf("expected max 4 in upper bracket, got (%d, %v)", max, ok)
	}

	if _, ok := MaxScore(l, 72); ok {
		t.Error("expected no coverage outside brackets")
	}
}
