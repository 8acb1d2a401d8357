package abnormality

import (
	"fmt"
	"math"

	telemetry "dtr-monitor/internal/telemetry/domain"
)

// zeroEpsilon is the threshold below which an absolute value is treated as zero.
const zeroEpsilon = 0.001

const (
	lowPFBound        = 0.8
	minPhaseVoltage   = 180.0
	maxNeutralCurrent = 15.0
)

// Rule pairs a fault flag with its detection predicate and the reading field
// rendered into the error signature. A single table feeds both the analyzer
// and the signature generator so the two can never drift apart.
type Rule struct {
	Flag   string
	Detect func(r telemetry.MeterReading) bool
	Value  func(r telemetry.MeterReading) float64
}

type phase struct {
	name    string
	voltage func(r telemetry.MeterReading) float64
	current func(r telemetry.MeterReading) float64
	pf      func(r telemetry.MeterReading) float64
}

var phases = []phase{
	{
		name:    "R",
		voltage: func(r telemetry.MeterReading) float64 { return r.VoltageR },
		current: func(r telemetry.MeterReading) float64 { return r.CurrentR },
		pf:      func(r telemetry.MeterReading) float64 { return r.PowerFactorR },
	},
	{
		name:    "Y",
		voltage: func(r telemetry.MeterReading) float64 { return r.VoltageY },
		current: func(r telemetry.MeterReading) float64 { return r.CurrentY },
		pf:      func(r telemetry.MeterReading) float64 { return r.PowerFactorY },
	},
	{
		name:    "B",
		voltage: func(r telemetry.MeterReading) float64 { return r.VoltageB },
		current: func(r telemetry.MeterReading) float64 { return r.CurrentB },
		pf:      func(r telemetry.MeterReading) float64 { return r.PowerFactorB },
	},
}

// rules is the full declarative fault table.
var rules = buildRules()

// ruleByFlag indexes rules for signature rendering.
var ruleByFlag = func() map[string]Rule {
	index := make(map[string]Rule, len(rules))
	for _, rule := range rules {
		index[rule.Flag] = rule
	}
	return index
}()

func buildRules() []Rule {
	var table []Rule
	for _, p := range phases {
		p := p
		table = append(table,
			Rule{
				Flag:   fmt.Sprintf("Meter Power Fail (%s - Phase)", p.name),
				Detect: func(r telemetry.MeterReading) bool { return nearZero(p.pf(r)) },
				Value:  p.pf,
			},
			Rule{
				Flag:   fmt.Sprintf("%s - Phase Missing", p.name),
				Detect: func(r telemetry.MeterReading) bool { return nearZero(p.voltage(r)) },
				Value:  p.voltage,
			},
			Rule{
				Flag:   fmt.Sprintf("LT Fuse Blown (%s - Phase)", p.name),
				Detect: func(r telemetry.MeterReading) bool { return nearZero(p.current(r)) },
				Value:  p.current,
			},
			Rule{
				Flag:   fmt.Sprintf("%s - Phase CT Reversed", p.name),
				Detect: func(r telemetry.MeterReading) bool { return p.current(r) < 0 },
				Value:  p.current,
			},
			// The Low PF band includes zero, so Low PF and Meter Power Fail
			// can both be raised for the same phase. That overlap is intended.
			Rule{
				Flag:   fmt.Sprintf("Low PF (%s - Phase)", p.name),
				Detect: func(r telemetry.MeterReading) bool { return r.PowerFactor >= -lowPFBound && r.PowerFactor <= lowPFBound },
				Value:  func(r telemetry.MeterReading) float64 { return r.PowerFactor },
			},
			Rule{
				Flag:   fmt.Sprintf("HT Fuse Blown (%s - Phase)", p.name),
				Detect: func(r telemetry.MeterReading) bool { return p.voltage(r) < minPhaseVoltage },
				Value:  p.voltage,
			},
		)
	}
	table = append(table, Rule{
		Flag:   "Unbalanced Load",
		Detect: func(r telemetry.MeterReading) bool { return r.NeutralCurrent > maxNeutralCurrent },
		Value:  func(r telemetry.MeterReading) float64 { return r.NeutralCurrent },
	})
	return table
}

func nearZero(v float64) bool {
	return math.Abs(v) < zeroEpsilon
}
