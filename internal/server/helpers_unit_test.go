package server

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, ok := parseDate("2026-02-15", time.Now())
	if !ok {
		t.Fatalf("expected parseDate to succeed")
	}
	if got.Format(time.RFC3339) != "2026-02-15T00:00:00Z" {
		t.Fatalf("unexpected parsed date: %s", got.Format(time.RFC3339))
	}

	if _, ok := parseDate("02/15/2026", time.Now()); ok {
		t.Fatalf("expected invalid date to fail")
	}

	local := time.Date(2026, 2, 15, 23, 45, 0, 0, time.FixedZone("KST", 9*60*60))
	today, ok := parseDate("  ", local)
	if !ok || today.Format(time.RFC3339) != "2026-02-15T00:00:00Z" {
		t.Fatalf("expected empty input to mean the clock's calendar day, got %s", today)
	}
}

func TestExtractNumberFromMap(t *testing.T) {
	values := map[string]any{"a": "12.5", "b": 3, "c": "nope"}
	if got := extractNumberFromMap(values, "missing", "a"); got != 12.5 {
		t.Fatalf("expected 12.5, got %v", got)
	}
	if got := extractNumberFromMap(values, "c", "b"); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
	if got := extractNumberFromMap(nil, "a"); got != 0 {
		t.Fatalf("expected 0 for nil map")
	}
}

func TestParseJSONStringMap(t *testing.T) {
	if got := parseJSONStringMap([]byte(`{"model":"gpt"}`)); got["model"] != "gpt" {
		t.Fatalf("unexpected map %v", got)
	}
	for _, raw := range []string{"", "[1,2]", "null", "{"} {
		if got := parseJSONStringMap([]byte(raw)); got == nil || len(got) != 0 {
			t.Fatalf("expected empty map for %q, got %v", raw, got)
		}
	}
}

func TestRoundTo(t *testing.T) {
	if got := roundTo(12.345, 1); got != 12.3 {
		t.Fatalf("expected 12.3, got %v", got)
	}
	if got := roundTo(0.05, 1); got != 0.1 {
		t.Fatalf("expected 0.1, got %v", got)
	}
}

func TestListLabels(t *testing.T) {
	weight := 62.5
	zero := 0.0
	if got := weightLabel(&weight); got != "62.5kg" {
		t.Fatalf("unexpected weight label %q", got)
	}
	if got := weightLabel(&zero); got != bodyWeightLabel {
		t.Fatalf("expected body weight label, got %q", got)
	}
	blank := " "
	if got := exerciseDisplayName(&blank); got != exerciseNameFallback {
		t.Fatalf("expected fallback name, got %q", got)
	}
	sets := 0
	if got := positiveOr(&sets, 1); got != 1 {
		t.Fatalf("expected fallback 1, got %d", got)
	}
}
