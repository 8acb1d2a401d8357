package abnormality

import (
	"testing"

	telemetry "dtr-monitor/internal/telemetry/domain"
)

func healthyReading() telemetry.MeterReading {
	return telemetry.MeterReading{
		MeterID:        "meter-42",
		VoltageR:       230,
		VoltageY:       231,
		VoltageB:       229,
		CurrentR:       5.0,
		CurrentY:       5.2,
		CurrentB:       5.1,
		PowerFactor:    0.95,
		PowerFactorR:   0.97,
		PowerFactorY:   0.96,
		PowerFactorB:   0.95,
		NeutralCurrent: 3,
	}
}

func TestAnalyzeHealthyReading(t *testing.T) {
	flags := Analyze(healthyReading())
	if flags.Any() {
		t.Fatalf("expected no abnormalities, got %v", flags.Active())
	}
}

func TestAnalyzeBlownLTFuse(t *testing.T) {
	reading := healthyReading()
	reading.CurrentR = 0

	flags := Analyze(reading)
	if !flags["LT Fuse Blown (R - Phase)"] {
		t.Fatal("expected LT Fuse Blown (R - Phase) flag")
	}
	active := flags.Active()
	if len(active) != 1 {
		t.Fatalf("expected exactly one flag, got %v", active)
	}
}

func TestAnalyzeNearZeroTreatedAsZero(t *testing.T) {
	reading := healthyReading()
	reading.CurrentY = 0.0005

	flags := Analyze(reading)
	if !flags["LT Fuse Blown (Y - Phase)"] {
		t.Fatal("expected near-zero current to count as zero")
	}
}

func TestAnalyzeCTReversed(t *testing.T) {
	reading := healthyReading()
	reading.CurrentB = -4.2

	flags := Analyze(reading)
	if !flags["B - Phase CT Reversed"] {
		t.Fatal("expected B - Phase CT Reversed flag")
	}
	if flags["LT Fuse Blown (B - Phase)"] {
		t.Fatal("negative current is not a blown fuse")
	}
}

func TestAnalyzeMissingPhaseAlsoFlagsHTFuse(t *testing.T) {
	reading := healthyReading()
	reading.VoltageR = 0

	flags := Analyze(reading)
	if !flags["R - Phase Missing"] {
		t.Fatal("expected R - Phase Missing flag")
	}
	if !flags["HT Fuse Blown (R - Phase)"] {
		t.Fatal("zero voltage is also below the HT fuse threshold")
	}
}

func TestAnalyzeLowVoltage(t *testing.T) {
	reading := healthyReading()
	reading.VoltageY = 165

	flags := Analyze(reading)
	if !flags["HT Fuse Blown (Y - Phase)"] {
		t.Fatal("expected HT Fuse Blown (Y - Phase) flag")
	}
	if flags["Y - Phase Missing"] {
		t.Fatal("165V is low, not missing")
	}
}

func TestAnalyzeUnbalancedLoad(t *testing.T) {
	reading := healthyReading()
	reading.NeutralCurrent = 15.4

	flags := Analyze(reading)
	if !flags["Unbalanced Load"] {
		t.Fatal("expected Unbalanced Load flag")
	}
}

func TestAnalyzeLowPFOverlapsPowerFail(t *testing.T) {
	reading := healthyReading()
	reading.PowerFactor = 0
	reading.PowerFactorR = 0

	flags := Analyze(reading)
	if !flags["Low PF (R - Phase)"] {
		t.Fatal("expected Low PF (R - Phase): the band includes zero")
	}
	if !flags["Meter Power Fail (R - Phase)"] {
		t.Fatal("expected Meter Power Fail (R - Phase) at zero phase power factor")
	}
}

func TestAnalyzeLowPFBoundary(t *testing.T) {
	reading := healthyReading()
	reading.PowerFactor = -0.8

	flags := Analyze(reading)
	if !flags["Low PF (R - Phase)"] || !flags["Low PF (Y - Phase)"] || !flags["Low PF (B - Phase)"] {
		t.Fatalf("expected Low PF on all phases at band edge, got %v", flags.Active())
	}
}

func TestActiveSorted(t *testing.T) {
	reading := healthyReading()
	reading.CurrentR = 0
	reading.CurrentY = 0

	active := Analyze(reading).Active()
	for i := 1; i < len(active); i++ {
		if active[i-1] >= active[i] {
			t.Fatalf("active flags not sorted: %v", active)
		}
	}
}
