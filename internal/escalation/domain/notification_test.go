package escalation

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusActive, StatusSent, true},
		{StatusActive, StatusResolved, true},
		{StatusSent, StatusResolved, true},
		{StatusSent, StatusActive, false},
		{StatusResolved, StatusActive, false},
		{StatusResolved, StatusSent, false},
		{StatusActive, StatusActive, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestMarkSentThenResolved(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	n := Notification{Status: StatusActive}

	if err := n.MarkSent(now); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if n.Status != StatusSent || !n.SentAt.Equal(now) {
		t.Fatalf("unexpected state after send: %+v", n)
	}
	if err := n.MarkResolved(now.Add(time.Hour)); err != nil {
		t.Fatalf("mark resolved: %v", err)
	}
	if n.Status != StatusResolved || n.ResolvedAt.IsZero() {
		t.Fatalf("unexpected state after resolve: %+v", n)
	}
	if err := n.MarkSent(now); err == nil {
		t.Fatal("expected resolved -> sent to be rejected")
	}
}

func TestOpen(t *testing.T) {
	now := time.Now().UTC()
	open := Notification{Status: StatusActive}
	if !open.Open() {
		t.Fatal("active row should be open")
	}
	sent := Notification{Status: StatusSent}
	if !sent.Open() {
		t.Fatal("sent row should be open")
	}
	resolved := Notification{Status: StatusResolved, ResolvedAt: now}
	if resolved.Open() {
		t.Fatal("resolved row should not be open")
	}
}

func TestBuildNotificationIDDeterministic(t *testing.T) {
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	a := BuildNotificationID("meter-1", "Unbalanced Load", 1, at)
	b := BuildNotificationID("meter-1", "Unbalanced Load", 1, at)
	if a != b {
		t.Fatalf("expected deterministic id, got %s and %s", a, b)
	}
	c := BuildNotificationID("meter-1", "Unbalanced Load", 2, at)
	if a == c {
		t.Fatal("expected level to contribute to id")
	}
}

func TestValidateLevels(t *testing.T) {
	contact := []Contact{{Role: "JE", Name: "JE", Phone: "+911111111111"}}
	valid := []Level{
		{Level: 0, Name: "Site", DelayMinutes: 0, Contacts: contact},
		{Level: 1, Name: "JE", DelayMinutes: 15, Contacts: contact},
	}
	if err := ValidateLevels(valid); err != nil {
		t.Fatalf("valid table rejected: %v", err)
	}

	if err := ValidateLevels(nil); err == nil {
		t.Fatal("expected empty table to be rejected")
	}

	delayed := []Level{{Level: 0, DelayMinutes: 5, Contacts: contact}}
	if err := ValidateLevels(delayed); err == nil {
		t.Fatal("expected nonzero level-0 delay to be rejected")
	}

	outOfOrder := []Level{
		{Level: 0, Contacts: contact},
		{Level: 2, DelayMinutes: 15, Contacts: contact},
	}
	if err := ValidateLevels(outOfOrder); err == nil {
		t.Fatal("expected gap in level numbering to be rejected")
	}

	noPhone := []Level{{Level: 0, Contacts: []Contact{{Name: "X"}}}}
	if err := ValidateLevels(noPhone); err == nil {
		t.Fatal("expected contact without phone to be rejected")
	}
}
