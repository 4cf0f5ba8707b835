package billing

import (
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Year != 2025 || p.Month != time.March {
		t.Fatalf("unexpected period %v", p)
	}
	if got := p.String(); got != "2025-03" {
		t.Fatalf("String() = %q", got)
	}
}

func TestParsePeriodInvalid(t *testing.T) {
	for _, in := range []string{"", "2025", "2025-13", "03-2025", "2025/03"} {
		if _, err := ParsePeriod(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestPeriodBounds(t *testing.T) {
	p := Period{Year: 2024, Month: time.December}
	if got := p.Start(); !got.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", got)
	}
	if got := p.End(); !got.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end = %v", got)
	}
	if !p.Contains(time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)) {
		t.Fatal("expected last day to be contained")
	}
	if p.Contains(p.End()) {
		t.Fatal("end must be exclusive")
	}
}

func TestPeriodPrevious(t *testing.T) {
	p := Period{Year: 2025, Month: time.January}
	prev := p.Previous()
	if prev.Year != 2024 || prev.Month != time.December {
		t.Fatalf("previous = %v", prev)
	}
}

func TestNewPeriodValidation(t *testing.T) {
	if _, err := NewPeriod(2025, 0); err == nil {
		t.Fatal("expected error for month 0")
	}
	if _, err := NewPeriod(1990, 5); err == nil {
		t.Fatal("expected error for out of range year")
	}
	if _, err := NewPeriod(2025, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
