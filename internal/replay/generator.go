package replay

import (
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Reading ranges of the generated channels.
const (
	irCenter = 2900.0
	irSpread = 400.0
	irStep   = 60.0

	hrMin, hrRange     = 58.0, 40.0
	spo2Min, spo2Range = 92.0, 8.0
	tempMin, tempRange = 36.1, 1.6
	accelRange         = 2.0

	pcgStream = 0x9e3779b97f4a7c15
)

// Generator produces sensor documents whose IR channel follows a bounded
// random walk so consecutive batches look like one continuous recording.
type Generator struct {
	rng     *rand.Rand
	samples int
	ir      float64
}

// NewGenerator returns a generator emitting samples IR readings per document.
func NewGenerator(seed uint64, samples int) *Generator {
	if samples <= 0 {
		samples = 1
	}
	return &Generator{
		rng:     rand.New(rand.NewPCG(seed, pcgStream)), //nolint:gosec // synthetic data
		samples: samples,
		ir:      irCenter,
	}
}

// Batch returns a batch of n documents with a fresh id.
func (g *Generator) Batch(n int) Batch {
	docs := make([]map[string]any, n)
	for i := range docs {
		docs[i] = g.Document()
	}
	return Batch{ID: uuid.NewString(), Documents: docs}
}

// Document returns one sensor document.
func (g *Generator) Document() map[string]any {
	ir := make([]any, g.samples)
	for i := range ir {
		g.ir += (g.rng.Float64()*2 - 1) * irStep
		g.ir = math.Max(irCenter-irSpread, math.Min(irCenter+irSpread, g.ir))
		ir[i] = math.Round(g.ir)
	}
	return map[string]any{
		"IR":    ir,
		"HR":    []any{g.uniform(hrMin, hrRange, 0)},
		"SPO2":  []any{g.uniform(spo2Min, spo2Range, 0)},
		"Temp":  []any{g.uniform(tempMin, tempRange, 1)},
		"AcX":   []any{g.uniform(-accelRange/2, accelRange, 2)},
		"AcY":   []any{g.uniform(-accelRange/2, accelRange, 2)},
		"AcZ":   []any{g.uniform(-accelRange/2, accelRange, 2)},
		"VHR":   []any{g.uniform(hrMin, hrRange, 0)},
		"VSPO2": []any{g.uniform(spo2Min, spo2Range, 0)},
	}
}

// uniform draws from [lo, lo+width) rounded to digits decimals.
func (g *Generator) uniform(lo, width float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round((lo+g.rng.Float64()*width)*p) / p
}
