package train

import (
	"math"

	"github.com/velocast/velocast/recurrent"
)

// Adam is the adaptive-moment optimizer used for every variant: fixed
// learning rate, no schedule, no gradient clipping.
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	step  int
	m     map[string][]float64
	v     map[string][]float64
}

// NewAdam creates an Adam optimizer with the usual beta/epsilon defaults.
func NewAdam(lr float64) *Adam {
	return &Adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make(map[string][]float64),
		v:     make(map[string][]float64),
	}
}

// Step applies one bias-corrected Adam update from the accumulated gradients.
// Moment buffers are keyed by parameter name and allocated on first sight.
func (a *Adam) Step(params []*recurrent.Param) {
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))
	for _, p := range params {
		m, ok := a.m[p.Name]
		if !ok {
			m = make([]float64, len(p.W))
			a.m[p.Name] = m
			a.v[p.Name] = make([]float64, len(p.W))
		}
		v := a.v[p.Name]
		for i := range p.W {
			g := float64(p.Grad[i])
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			mHat := m[i] / c1
			vHat := v[i] / c2
			p.W[i] -= float32(a.lr * mHat / (math.Sqrt(vHat) + a.eps))
		}
	}
}
