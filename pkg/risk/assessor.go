// Package risk produces the cosmetic risk verdict attached to protocol steps.
//
// The verdict is a narrative signal, not a security control: it is a pure
// function of the secure id and the step, and never gates progression.
package risk

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/aretw0/onramp/pkg/domain"
	"github.com/zeebo/blake3"
)

const (
	// IntegrityMin and IntegrityMax bound the reported integrity score.
	IntegrityMin = 24.5
	IntegrityMax = 49.5

	// DefaultThreshold is the integrity score below which a step is reported as elevated.
	DefaultThreshold = 37.0
)

// domainKey keys the BLAKE3 hash so verdict digests never coincide with
// digests computed for other purposes.
var domainKey = [32]byte{
	'o', 'n', 'r', 'a', 'm', 'p', '.', 'r', 'i', 's', 'k', 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Assessor computes deterministic verdicts.
type Assessor struct {
	threshold float64
}

// Option configures the Assessor.
type Option func(*Assessor)

// WithThreshold overrides the elevated/nominal cut-off.
func WithThreshold(threshold float64) Option {
	return func(a *Assessor) {
		a.threshold = threshold
	}
}

// New creates an Assessor.
func New(opts ...Option) *Assessor {
	a := &Assessor{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess returns the verdict for secureID at step. Identical inputs always
// produce identical output.
func (a *Assessor) Assess(secureID string, step domain.StepDefinition) domain.Assessment {
	sum := digest(secureID, step.ID)

	frac := float64(binary.BigEndian.Uint16(sum[0:2])) / math.MaxUint16
	integrity := math.Round((IntegrityMin+frac*(IntegrityMax-IntegrityMin))*10) / 10

	verdict := domain.RiskNominal
	if integrity < a.threshold {
		verdict = domain.RiskElevated
	}

	return domain.Assessment{
		Verdict:   verdict,
		Integrity: integrity,
		SyncSeed:  fmt.Sprintf("%04X", binary.BigEndian.Uint16(sum[2:4])),
	}
}

func digest(secureID, stepID string) [32]byte {
	h, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		// A 32-byte key never fails.
		panic(err)
	}
	_, _ = h.Write([]byte(secureID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(stepID))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
