package recurrent

import (
	"fmt"
	"math"
	"math/rand"
)

// attention is multi-head scaled dot-product self-attention over the full
// recurrent output sequence. Queries, keys and values are projected by
// [D x D] matrices whose column ranges form the per-head subspaces; head
// outputs are concatenated back to width D with no extra output projection.
type attention struct {
	dim     int // D, the recurrent output width
	heads   int
	headDim int
	wq      *Param
	wk      *Param
	wv      *Param
}

func newAttention(name string, dim, heads int, rng *rand.Rand) (*attention, error) {
	if heads < 1 {
		return nil, fmt.Errorf("attention needs at least one head, got %d", heads)
	}
	if dim%heads != 0 {
		return nil, fmt.Errorf("attention width %d not divisible by %d heads", dim, heads)
	}
	return &attention{
		dim:     dim,
		heads:   heads,
		headDim: dim / heads,
		wq:      newParam(fmt.Sprintf("%s.wq", name), dim, dim, rng),
		wk:      newParam(fmt.Sprintf("%s.wk", name), dim, dim, rng),
		wv:      newParam(fmt.Sprintf("%s.wv", name), dim, dim, rng),
	}, nil
}

func (a *attention) params() []*Param { return []*Param{a.wq, a.wk, a.wv} }

type attnCache struct {
	seq [][]float32 // input sequence, T x D
	q   [][]float32
	k   [][]float32
	v   [][]float32
	// attn[h][tq] is the softmax row of head h for query position tq.
	attn [][][]float32
}

// project computes seq · w for a [D x D] parameter.
func (a *attention) project(seq [][]float32, w *Param) [][]float32 {
	out := make([][]float32, len(seq))
	for t, x := range seq {
		row := make([]float32, a.dim)
		for k, xv := range x {
			if xv == 0 {
				continue
			}
			wRow := w.W[k*a.dim : (k+1)*a.dim]
			for j := range row {
				row[j] += xv * wRow[j]
			}
		}
		out[t] = row
	}
	return out
}

// forward returns the attended sequence (same shape as the input) and the
// cache for backward. Scores are scaled by 1/sqrt(headDim) and softmaxed per
// query position over the whole sequence.
func (a *attention) forward(seq [][]float32) ([][]float32, *attnCache) {
	T := len(seq)
	cache := &attnCache{
		seq:  seq,
		q:    a.project(seq, a.wq),
		k:    a.project(seq, a.wk),
		v:    a.project(seq, a.wv),
		attn: make([][][]float32, a.heads),
	}
	scale := float32(1.0 / math.Sqrt(float64(a.headDim)))

	out := make([][]float32, T)
	for t := range out {
		out[t] = make([]float32, a.dim)
	}
	for h := 0; h < a.heads; h++ {
		lo := h * a.headDim
		hi := lo + a.headDim
		cache.attn[h] = make([][]float32, T)
		for tq := 0; tq < T; tq++ {
			scores := make([]float32, T)
			maxScore := float32(math.Inf(-1))
			for tk := 0; tk < T; tk++ {
				var s float32
				for d := lo; d < hi; d++ {
					s += cache.q[tq][d] * cache.k[tk][d]
				}
				s *= scale
				scores[tk] = s
				if s > maxScore {
					maxScore = s
				}
			}
			var sum float32
			for tk := range scores {
				scores[tk] = float32(math.Exp(float64(scores[tk] - maxScore)))
				sum += scores[tk]
			}
			for tk := range scores {
				scores[tk] /= sum
			}
			cache.attn[h][tq] = scores
			for tk, w := range scores {
				for d := lo; d < hi; d++ {
					out[tq][d] += w * cache.v[tk][d]
				}
			}
		}
	}
	return out, cache
}

// backward propagates dOut through the attention block, accumulating
// projection gradients and returning the gradient w.r.t. the input sequence.
func (a *attention) backward(cache *attnCache, dOut [][]float32) [][]float32 {
	T := len(cache.seq)
	scale := float32(1.0 / math.Sqrt(float64(a.headDim)))

	dQ := make([][]float32, T)
	dK := make([][]float32, T)
	dV := make([][]float32, T)
	for t := 0; t < T; t++ {
		dQ[t] = make([]float32, a.dim)
		dK[t] = make([]float32, a.dim)
		dV[t] = make([]float32, a.dim)
	}

	for h := 0; h < a.heads; h++ {
		lo := h * a.headDim
		hi := lo + a.headDim
		for tq := 0; tq < T; tq++ {
			attnRow := cache.attn[h][tq]

			// dA[tk] = dOut[tq] · V[tk] restricted to this head's columns.
			dA := make([]float32, T)
			for tk := 0; tk < T; tk++ {
				var s float32
				for d := lo; d < hi; d++ {
					s += dOut[tq][d] * cache.v[tk][d]
				}
				dA[tk] = s
				for d := lo; d < hi; d++ {
					dV[tk][d] += attnRow[tk] * dOut[tq][d]
				}
			}

			// Softmax backward: dS = A * (dA - sum(dA*A)).
			var dot float32
			for tk := 0; tk < T; tk++ {
				dot += dA[tk] * attnRow[tk]
			}
			for tk := 0; tk < T; tk++ {
				ds := attnRow[tk] * (dA[tk] - dot) * scale
				for d := lo; d < hi; d++ {
					dQ[tq][d] += ds * cache.k[tk][d]
					dK[tk][d] += ds * cache.q[tq][d]
				}
			}
		}
	}

	dSeq := make([][]float32, T)
	for t := 0; t < T; t++ {
		dSeq[t] = make([]float32, a.dim)
	}
	a.projectBackward(cache.seq, dQ, a.wq, dSeq)
	a.projectBackward(cache.seq, dK, a.wk, dSeq)
	a.projectBackward(cache.seq, dV, a.wv, dSeq)
	return dSeq
}

// projectBackward accumulates w.Grad += seqᵀ · dProj and dSeq += dProj · wᵀ.
func (a *attention) projectBackward(seq, dProj [][]float32, w *Param, dSeq [][]float32) {
	for t, x := range seq {
		for k, xv := range x {
			wRow := w.W[k*a.dim : (k+1)*a.dim]
			gRow := w.Grad[k*a.dim : (k+1)*a.dim]
			var acc float32
			for j, d := range dProj[t] {
				gRow[j] += xv * d
				acc += d * wRow[j]
			}
			dSeq[t][k] += acc
		}
	}
}
