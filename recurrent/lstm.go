package recurrent

import (
	"fmt"
	"math/rand"
)

// lstmLayer is a single-direction LSTM layer. Gate weights are stacked
// row-wise in the order input, forget, cell, output: wx is [4H x in],
// wh is [4H x H], b is [4H].
type lstmLayer struct {
	in     int
	hidden int
	wx     *Param
	wh     *Param
	b      *Param
}

func newLSTMLayer(name string, in, hidden int, rng *rand.Rand) *lstmLayer {
	return &lstmLayer{
		in:     in,
		hidden: hidden,
		wx:     newParam(fmt.Sprintf("%s.wx", name), 4*hidden, in, rng),
		wh:     newParam(fmt.Sprintf("%s.wh", name), 4*hidden, hidden, rng),
		b:      newBias(fmt.Sprintf("%s.b", name), 4*hidden),
	}
}

func (l *lstmLayer) params() []*Param { return []*Param{l.wx, l.wh, l.b} }

// lstmStep caches one timestep's forward intermediates for backprop.
type lstmStep struct {
	x     []float32
	hPrev []float32
	cPrev []float32
	i     []float32
	f     []float32
	g     []float32
	o     []float32
	c     []float32
	tanhc []float32
	h     []float32
}

type lstmCache struct {
	steps []lstmStep
}

// forward runs the layer over the sequence and returns the hidden state at
// every timestep plus the cache needed by backward.
func (l *lstmLayer) forward(seq [][]float32) ([][]float32, *lstmCache) {
	H := l.hidden
	outs := make([][]float32, len(seq))
	cache := &lstmCache{steps: make([]lstmStep, len(seq))}

	hPrev := make([]float32, H)
	cPrev := make([]float32, H)
	for t, x := range seq {
		step := lstmStep{
			x:     x,
			hPrev: hPrev,
			cPrev: cPrev,
			i:     make([]float32, H),
			f:     make([]float32, H),
			g:     make([]float32, H),
			o:     make([]float32, H),
			c:     make([]float32, H),
			tanhc: make([]float32, H),
			h:     make([]float32, H),
		}
		for j := 0; j < 4*H; j++ {
			sum := l.b.W[j]
			wxRow := l.wx.W[j*l.in : (j+1)*l.in]
			for k, xv := range x {
				sum += wxRow[k] * xv
			}
			whRow := l.wh.W[j*H : (j+1)*H]
			for k, hv := range hPrev {
				sum += whRow[k] * hv
			}
			switch j / H {
			case 0:
				step.i[j%H] = sigmoid32(sum)
			case 1:
				step.f[j%H] = sigmoid32(sum)
			case 2:
				step.g[j%H] = tanh32(sum)
			default:
				step.o[j%H] = sigmoid32(sum)
			}
		}
		for j := 0; j < H; j++ {
			step.c[j] = step.f[j]*cPrev[j] + step.i[j]*step.g[j]
			step.tanhc[j] = tanh32(step.c[j])
			step.h[j] = step.o[j] * step.tanhc[j]
		}
		cache.steps[t] = step
		outs[t] = step.h
		hPrev = step.h
		cPrev = step.c
	}
	return outs, cache
}

// backward propagates dOut (gradient w.r.t. every timestep's hidden state)
// through time, accumulating parameter gradients and returning the gradient
// w.r.t. the input sequence.
func (l *lstmLayer) backward(cache *lstmCache, dOut [][]float32) [][]float32 {
	H := l.hidden
	T := len(cache.steps)
	dX := make([][]float32, T)
	dhNext := make([]float32, H)
	dcNext := make([]float32, H)
	dz := make([]float32, 4*H)

	for t := T - 1; t >= 0; t-- {
		step := cache.steps[t]
		dx := make([]float32, l.in)
		dhPrev := make([]float32, H)

		for j := 0; j < H; j++ {
			dh := dOut[t][j] + dhNext[j]
			do := dh * step.tanhc[j]
			dc := dh*step.o[j]*(1-step.tanhc[j]*step.tanhc[j]) + dcNext[j]
			di := dc * step.g[j]
			df := dc * step.cPrev[j]
			dg := dc * step.i[j]

			dz[j] = di * step.i[j] * (1 - step.i[j])
			dz[H+j] = df * step.f[j] * (1 - step.f[j])
			dz[2*H+j] = dg * (1 - step.g[j]*step.g[j])
			dz[3*H+j] = do * step.o[j] * (1 - step.o[j])

			dcNext[j] = dc * step.f[j]
		}

		for j := 0; j < 4*H; j++ {
			d := dz[j]
			if d == 0 {
				continue
			}
			l.b.Grad[j] += d
			wxRow := l.wx.W[j*l.in : (j+1)*l.in]
			gxRow := l.wx.Grad[j*l.in : (j+1)*l.in]
			for k, xv := range step.x {
				gxRow[k] += d * xv
				dx[k] += d * wxRow[k]
			}
			whRow := l.wh.W[j*H : (j+1)*H]
			ghRow := l.wh.Grad[j*H : (j+1)*H]
			for k, hv := range step.hPrev {
				ghRow[k] += d * hv
				dhPrev[k] += d * whRow[k]
			}
		}

		dX[t] = dx
		dhNext = dhPrev
	}
	return dX
}

func reverseSeq(seq [][]float32) [][]float32 {
	out := make([][]float32, len(seq))
	for i, row := range seq {
		out[len(seq)-1-i] = row
	}
	return out
}
