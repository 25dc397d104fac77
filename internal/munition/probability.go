package munition

import (
	"math"
	"strings"
)

// Severity is a damage level, ordered from no effect to destroyed.
type Severity uint8

const (
	SeverityNone Severity = iota
	SeverityMobility
	SeverityFirepower
	SeverityMobilityFirepower
	SeverityKill
)

var severityNames = [...]string{"none", "mobility", "firepower", "mobility_firepower", "kill"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}

// ParseSeverity accepts the names produced by String.
func ParseSeverity(s string) (Severity, bool) {
	for i, n := range severityNames {
		if strings.EqualFold(n, s) {
			return Severity(i), true
		}
	}
	return SeverityNone, false
}

// Coefficients are the per-severity D0 values of a probability table.
type Coefficients struct {
	Mobility          float64 `json:"mobility" mapstructure:"mobility"`
	Firepower         float64 `json:"firepower" mapstructure:"firepower"`
	MobilityFirepower float64 `json:"mobilityFirepower" mapstructure:"mobilityFirepower"`
	Kill              float64 `json:"kill" mapstructure:"kill"`
}

func (c Coefficients) byRank() [4]float64 {
	return [4]float64{c.Kill, c.MobilityFirepower, c.Firepower, c.Mobility}
}

// Probability is the outcome of one damage evaluation.
type Probability struct {
	None              float64
	Mobility          float64
	Firepower         float64
	MobilityFirepower float64
	Kill              float64

	// Absolute ranks results by the coefficients that produced them instead
	// of by the computed probabilities.
	Absolute     bool
	Coefficients Coefficients
}

// NoDamage is certain survival.
func NoDamage() Probability {
	return Probability{None: 1}
}

// Values returns the probabilities indexed by Severity.
func (p Probability) Values() [5]float64 {
	return [5]float64{p.None, p.Mobility, p.Firepower, p.MobilityFirepower, p.Kill}
}

// Of returns the probability of one severity.
func (p Probability) Of(s Severity) float64 {
	v := p.Values()
	if int(s) >= len(v) {
		return 0
	}
	return v[s]
}

// Select draws a severity from roll in [0, 1). The most severe outcomes
// occupy the start of the interval.
func (p Probability) Select(roll float64) Severity {
	acc := 0.0
	for _, s := range []Severity{SeverityKill, SeverityMobilityFirepower, SeverityFirepower, SeverityMobility} {
		acc += p.Of(s)
		if roll < acc {
			return s
		}
	}
	return SeverityNone
}

// Likely is the severity with the highest probability; ties favour the more severe.
func (p Probability) Likely() Severity {
	v := p.Values()
	best := len(v) - 1
	for i := best - 1; i >= 0; i-- {
		if v[i] > v[best] {
			best = i
		}
	}
	return Severity(best)
}

func (p Probability) byRank() [4]float64 {
	if p.Absolute {
		return p.Coefficients.byRank()
	}
	return [4]float64{p.Kill, p.MobilityFirepower, p.Firepower, p.Mobility}
}

// Compare ranks a against b by kill, then mobility+firepower, firepower and
// mobility. It returns -1, 0 or 1. The mode of a decides what is compared.
func Compare(a, b Probability) int {
	b.Absolute = a.Absolute
	ka, kb := a.byRank(), b.byRank()
	for i := range ka {
		switch {
		case ka[i] < kb[i]:
			return -1
		case ka[i] > kb[i]:
			return 1
		}
	}
	return 0
}

// CarletonProbability is d0 * exp(-d0 * ((x/r1)^2 + (y/r2)^2)): x is the
// offset along the trajectory, y across it. A zero radius only admits a zero offset.
func CarletonProbability(d0, x, y, r1, r2 float64) float64 {
	if d0 <= 0 {
		return 0
	}
	return d0 * math.Exp(-d0*(falloff(x, r1)+falloff(y, r2)))
}

func falloff(offset, radius float64) float64 {
	if radius <= 0 {
		if offset == 0 {
			return 0
		}
		return math.Inf(1)
	}
	q := offset / radius
	return q * q
}
