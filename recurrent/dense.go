package recurrent

import (
	"fmt"
	"math/rand"
)

// dense is a fully connected layer: out = w·x + b, with w stored [out x in].
type dense struct {
	in  int
	out int
	w   *Param
	b   *Param
}

func newDense(name string, in, out int, rng *rand.Rand) *dense {
	return &dense{
		in:  in,
		out: out,
		w:   newParam(fmt.Sprintf("%s.w", name), out, in, rng),
		b:   newBias(fmt.Sprintf("%s.b", name), out),
	}
}

func (d *dense) params() []*Param { return []*Param{d.w, d.b} }

func (d *dense) forward(x []float32) []float32 {
	out := make([]float32, d.out)
	for j := 0; j < d.out; j++ {
		sum := d.b.W[j]
		row := d.w.W[j*d.in : (j+1)*d.in]
		for k, xv := range x {
			sum += row[k] * xv
		}
		out[j] = sum
	}
	return out
}

// backward accumulates gradients for the forward pass that consumed x and
// returns the gradient w.r.t. x.
func (d *dense) backward(x, dOut []float32) []float32 {
	dx := make([]float32, d.in)
	for j, g := range dOut {
		if g == 0 {
			continue
		}
		d.b.Grad[j] += g
		row := d.w.W[j*d.in : (j+1)*d.in]
		gRow := d.w.Grad[j*d.in : (j+1)*d.in]
		for k, xv := range x {
			gRow[k] += g * xv
			dx[k] += g * row[k]
		}
	}
	return dx
}

// dropoutMask samples an inverted-dropout mask: entries are 0 with
// probability p and 1/(1-p) otherwise, so activations keep their expected
// scale and inference needs no rescaling.
func dropoutMask(n int, p float64, rng *rand.Rand) []float32 {
	mask := make([]float32, n)
	keep := float32(1.0 / (1.0 - p))
	for i := range mask {
		if rng.Float64() >= p {
			mask[i] = keep
		}
	}
	return mask
}

func applyMask(x, mask []float32) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = v * mask[i]
	}
	return out
}
