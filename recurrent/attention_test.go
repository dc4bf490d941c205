package recurrent

import (
	"math"
	"math/rand"
	"testing"
)

func TestAttentionSoftmaxRowsSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	attn, err := newAttention("attn", 8, 4, rng)
	if err != nil {
		t.Fatalf("newAttention error: %v", err)
	}
	seq := make([][]float32, 6)
	for i := range seq {
		row := make([]float32, 8)
		for j := range row {
			row[j] = rng.Float32()*2 - 1
		}
		seq[i] = row
	}
	out, cache := attn.forward(seq)
	if len(out) != len(seq) {
		t.Fatalf("attention changed sequence length: %d != %d", len(out), len(seq))
	}
	for _, row := range out {
		if len(row) != 8 {
			t.Fatalf("attention changed width: %d != 8", len(row))
		}
	}
	for h := range cache.attn {
		for tq, weights := range cache.attn[h] {
			var sum float64
			for _, w := range weights {
				if w < 0 {
					t.Fatalf("negative attention weight head %d query %d", h, tq)
				}
				sum += float64(w)
			}
			if math.Abs(sum-1) > 1e-4 {
				t.Fatalf("head %d query %d weights sum to %v, want 1", h, tq, sum)
			}
		}
	}
}

func TestAttentionHeadsMustDivideWidth(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	if _, err := newAttention("attn", 10, 4, rng); err == nil {
		t.Fatal("expected error when heads do not divide width")
	}
}

func TestAttentionRejectsNonPositiveHeads(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	// 8 % -2 == 0, so the divisibility check alone would let this through
	// and the per-head loops would silently produce all-zero output.
	if _, err := newAttention("attn", 8, -2, rng); err == nil {
		t.Fatal("expected error for negative head count")
	}
	if _, err := newAttention("attn", 8, 0, rng); err == nil {
		t.Fatal("expected error for zero head count")
	}
}

func TestAttentionConstantSequenceIsUniform(t *testing.T) {
	// Identical timesteps produce identical scores, so every softmax row is
	// uniform and the output equals the (shared) value projection.
	rng := rand.New(rand.NewSource(7))
	attn, err := newAttention("attn", 4, 2, rng)
	if err != nil {
		t.Fatalf("newAttention error: %v", err)
	}
	row := []float32{0.5, -0.25, 1, 0.75}
	seq := [][]float32{row, row, row}
	out, cache := attn.forward(seq)
	for h := range cache.attn {
		for tq, weights := range cache.attn[h] {
			for _, w := range weights {
				if math.Abs(float64(w)-1.0/3.0) > 1e-5 {
					t.Fatalf("head %d query %d weight %v, want uniform 1/3", h, tq, w)
				}
			}
		}
	}
	for i := 1; i < len(out); i++ {
		for j := range out[i] {
			if diff := float64(out[i][j] - out[0][j]); math.Abs(diff) > 1e-5 {
				t.Fatalf("constant input produced varying output at step %d col %d", i, j)
			}
		}
	}
}
