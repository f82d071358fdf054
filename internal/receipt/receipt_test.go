package receipt

import (
	"testing"
	"time"
)

func TestNumberFormat(t *testing.T) {
	at := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
	got := Number(at, 7)
	if got != "2026-09-01-000007" {
		t.Fatalf("expected 2026-09-01-000007, got %s", got)
	}
}

func TestNumberPadsToSixDigits(t *testing.T) {
	at := time.Date(2026, 1, 5, 0, 0, 1, 0, time.UTC)
	got := Number(at, 123456)
	if got != "2026-01-05-123456" {
		t.Fatalf("expected 2026-01-05-123456, got %s", got)
	}
}

func TestNumberUsesUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	at := time.Date(2026, 9, 1, 2, 0, 0, 0, loc)
	got := Number(at, 1)
	if got != "2026-08-31-000001" {
		t.Fatalf("expected 2026-08-31-000001, got %s", got)
	}
}

func TestDayBounds(t *testing.T) {
	at := time.Date(2026, 9, 1, 23, 59, 59, 0, time.UTC)
	from, to := DayBounds(at)
	if !from.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from: %v", from)
	}
	if !to.Equal(time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected to: %v", to)
	}
	if !at.Before(to) || at.Before(from) {
		t.Fatalf("timestamp should fall inside its own day bounds")
	}
}
