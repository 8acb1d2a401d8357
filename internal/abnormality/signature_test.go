package abnormality

import (
	"strings"
	"testing"
)

func TestSignatureSingleFault(t *testing.T) {
	reading := healthyReading()
	reading.CurrentR = 0

	flags := Analyze(reading)
	got := Signature(flags, reading)
	want := "LT Fuse Blown (R - Phase):0.000;"
	if got != want {
		t.Fatalf("signature mismatch: got %q want %q", got, want)
	}
}

func TestSignatureDeterministic(t *testing.T) {
	reading := healthyReading()
	reading.CurrentR = 0
	reading.VoltageB = 150
	reading.NeutralCurrent = 22.5

	flags := Analyze(reading)
	first := Signature(flags, reading)
	second := Signature(Analyze(reading), reading)
	if first != second {
		t.Fatalf("same reading produced different signatures: %q vs %q", first, second)
	}
}

func TestSignatureSortedAndValueMapped(t *testing.T) {
	reading := healthyReading()
	reading.CurrentY = 0
	reading.VoltageB = 150

	sig := Signature(Analyze(reading), reading)
	htIdx := strings.Index(sig, "HT Fuse Blown (B - Phase):150.000;")
	ltIdx := strings.Index(sig, "LT Fuse Blown (Y - Phase):0.000;")
	if htIdx < 0 || ltIdx < 0 {
		t.Fatalf("expected both fault entries in signature, got %q", sig)
	}
	if htIdx > ltIdx {
		t.Fatalf("expected lexicographic flag order, got %q", sig)
	}
}

func TestSignatureChangesWithTriggeringValue(t *testing.T) {
	reading := healthyReading()
	reading.NeutralCurrent = 20

	sig1 := Signature(Analyze(reading), reading)
	reading.NeutralCurrent = 25
	sig2 := Signature(Analyze(reading), reading)
	if sig1 == sig2 {
		t.Fatal("expected signature to track the triggering value")
	}
}

func TestSignatureEmptyWhenHealthy(t *testing.T) {
	reading := healthyReading()
	if sig := Signature(Analyze(reading), reading); sig != "" {
		t.Fatalf("expected empty signature for healthy reading, got %q", sig)
	}
}
