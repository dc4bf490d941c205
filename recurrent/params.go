package recurrent

import (
	"math"
	"math/rand"
)

// Param is one trainable parameter matrix stored row-major, together with its
// gradient accumulator. Optimizers and checkpoints address parameters through
// the model's Params and State methods; names are unique within a model.
type Param struct {
	Name string
	Rows int
	Cols int
	W    []float32
	Grad []float32
}

func newParam(name string, rows, cols int, rng *rand.Rand) *Param {
	p := &Param{
		Name: name,
		Rows: rows,
		Cols: cols,
		W:    make([]float32, rows*cols),
		Grad: make([]float32, rows*cols),
	}
	// Xavier/Glorot uniform initialization heuristic
	limit := float32(math.Sqrt(6.0 / float64(rows+cols)))
	for i := range p.W {
		p.W[i] = (rng.Float32()*2.0 - 1.0) * limit
	}
	return p
}

func newBias(name string, n int) *Param {
	return &Param{Name: name, Rows: n, Cols: 1, W: make([]float32, n), Grad: make([]float32, n)}
}

func (p *Param) zeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

func sigmoid32(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

func tanh32(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}
