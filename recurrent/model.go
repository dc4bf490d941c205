// Package recurrent implements the four demand-forecasting model variants as
// a closed set behind one contract: a batch of (steps x features) windows in,
// one scalar prediction per window out. The nets are trained by an explicit
// backward pass through the same structures, with no external deep-learning
// framework, so runs are deterministic under a fixed seed.
package recurrent

import (
	"fmt"
	"math/rand"
	"time"
)

// Variant selects one of the four model architectures. The slug doubles as
// the checkpoint file prefix, so variants can never overwrite each other.
type Variant string

const (
	VariantLSTM            Variant = "lstm"
	VariantBiLSTM          Variant = "bilstm"
	VariantLSTMAttention   Variant = "lstm_attention"
	VariantBiLSTMAttention Variant = "bilstm_attention"
)

// AllVariants returns the variants in training order.
func AllVariants() []Variant {
	return []Variant{VariantLSTM, VariantBiLSTM, VariantLSTMAttention, VariantBiLSTMAttention}
}

// Slug returns the file-safe identifier of the variant.
func (v Variant) Slug() string { return string(v) }

func (v Variant) bidirectional() bool {
	return v == VariantBiLSTM || v == VariantBiLSTMAttention
}

func (v Variant) attention() bool {
	return v == VariantLSTMAttention || v == VariantBiLSTMAttention
}

// ParseVariant validates a variant slug.
func ParseVariant(s string) (Variant, error) {
	for _, v := range AllVariants() {
		if s == string(v) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variant %q", s)
}

// Config holds the architecture hyperparameters shared by all variants.
type Config struct {
	// InputDim is the per-timestep feature vector width. Required.
	InputDim int
	// HiddenSize is the recurrent state width (default 256).
	HiddenSize int
	// Layers is the number of stacked recurrent layers (default 2).
	Layers int
	// Dropout is applied between recurrent layers and inside the head
	// during training (default 0.5).
	Dropout float64
	// Heads is the attention head count for the attention variants
	// (default 4). HiddenSize must be divisible by Heads.
	Heads int
	// Seed controls weight init and dropout masks. If zero, time-based.
	Seed int64
}

const headHidden = 128

// level is one stacked recurrent layer; bw is nil for unidirectional
// variants.
type level struct {
	fw *lstmLayer
	bw *lstmLayer
}

// Model is one concrete variant ready to train.
type Model struct {
	Variant Variant
	Config  Config

	levels []level
	attn   *attention
	fc1    *dense
	fc2    *dense

	rng    *rand.Rand
	params []*Param

	// caches holds per-example forward state from the most recent
	// Forward(train=true) call, consumed by Backward.
	caches []*exCache
}

// New builds a model of the given variant. Zero config fields take the
// pipeline defaults.
func New(variant Variant, cfg Config) (*Model, error) {
	if _, err := ParseVariant(string(variant)); err != nil {
		return nil, err
	}
	if cfg.InputDim <= 0 {
		return nil, fmt.Errorf("input dimension must be positive, got %d", cfg.InputDim)
	}
	if cfg.HiddenSize == 0 {
		cfg.HiddenSize = 256
	}
	if cfg.Layers == 0 {
		cfg.Layers = 2
	}
	if cfg.Dropout == 0 {
		cfg.Dropout = 0.5
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return nil, fmt.Errorf("dropout must be in [0, 1), got %v", cfg.Dropout)
	}
	if cfg.Heads == 0 {
		cfg.Heads = 4
	}
	if cfg.HiddenSize%cfg.Heads != 0 {
		return nil, fmt.Errorf("hidden size %d not divisible by %d heads", cfg.HiddenSize, cfg.Heads)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	m := &Model{
		Variant: variant,
		Config:  cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}

	outWidth := cfg.HiddenSize
	if variant.bidirectional() {
		outWidth = 2 * cfg.HiddenSize
	}
	for l := 0; l < cfg.Layers; l++ {
		in := cfg.InputDim
		if l > 0 {
			in = outWidth
		}
		lv := level{fw: newLSTMLayer(fmt.Sprintf("lstm%d.fw", l), in, cfg.HiddenSize, m.rng)}
		if variant.bidirectional() {
			lv.bw = newLSTMLayer(fmt.Sprintf("lstm%d.bw", l), in, cfg.HiddenSize, m.rng)
		}
		m.levels = append(m.levels, lv)
	}
	if variant.attention() {
		attn, err := newAttention("attn", outWidth, cfg.Heads, m.rng)
		if err != nil {
			return nil, err
		}
		m.attn = attn
	}
	m.fc1 = newDense("head.fc1", outWidth, headHidden, m.rng)
	m.fc2 = newDense("head.fc2", headHidden, 1, m.rng)

	for _, lv := range m.levels {
		m.params = append(m.params, lv.fw.params()...)
		if lv.bw != nil {
			m.params = append(m.params, lv.bw.params()...)
		}
	}
	if m.attn != nil {
		m.params = append(m.params, m.attn.params()...)
	}
	m.params = append(m.params, m.fc1.params()...)
	m.params = append(m.params, m.fc2.params()...)
	return m, nil
}

// levelCache holds one level's forward state for one example.
type levelCache struct {
	input [][]float32
	fw    *lstmCache
	bw    *lstmCache
	// masks are the inter-layer dropout masks applied to this level's
	// output (nil for the top level or at inference).
	masks [][]float32
}

// exCache holds everything backward needs for one example.
type exCache struct {
	levels     []*levelCache
	attnCache  *attnCache
	headIn     []float32
	fc1Pre     []float32
	fc1Dropped []float32
	headMask   []float32
	seqLen     int
}

func (m *Model) forwardExample(window [][]float32, train bool) (float32, *exCache, error) {
	if len(window) == 0 {
		return 0, nil, fmt.Errorf("empty window")
	}
	for t, row := range window {
		if len(row) != m.Config.InputDim {
			return 0, nil, fmt.Errorf("window step %d has %d features, model expects %d",
				t, len(row), m.Config.InputDim)
		}
	}

	cache := &exCache{seqLen: len(window)}
	seq := window
	for li, lv := range m.levels {
		lc := &levelCache{input: seq}
		fwOut, fwCache := lv.fw.forward(seq)
		lc.fw = fwCache
		var out [][]float32
		if lv.bw != nil {
			bwOut, bwCache := lv.bw.forward(reverseSeq(seq))
			lc.bw = bwCache
			bwOut = reverseSeq(bwOut)
			out = make([][]float32, len(seq))
			for t := range out {
				row := make([]float32, 0, 2*m.Config.HiddenSize)
				row = append(row, fwOut[t]...)
				row = append(row, bwOut[t]...)
				out[t] = row
			}
		} else {
			out = fwOut
		}
		if train && m.Config.Dropout > 0 && li < len(m.levels)-1 {
			lc.masks = make([][]float32, len(out))
			dropped := make([][]float32, len(out))
			for t := range out {
				lc.masks[t] = dropoutMask(len(out[t]), m.Config.Dropout, m.rng)
				dropped[t] = applyMask(out[t], lc.masks[t])
			}
			seq = dropped
		} else {
			seq = out
		}
		cache.levels = append(cache.levels, lc)
	}

	if m.attn != nil {
		var ac *attnCache
		seq, ac = m.attn.forward(seq)
		cache.attnCache = ac
	}

	// Only the final time step's representation feeds the head.
	cache.headIn = seq[len(seq)-1]
	cache.fc1Pre = m.fc1.forward(cache.headIn)
	act := make([]float32, len(cache.fc1Pre))
	for i, v := range cache.fc1Pre {
		if v > 0 {
			act[i] = v
		}
	}
	if train && m.Config.Dropout > 0 {
		cache.headMask = dropoutMask(len(act), m.Config.Dropout, m.rng)
		cache.fc1Dropped = applyMask(act, cache.headMask)
	} else {
		cache.fc1Dropped = act
	}
	pred := m.fc2.forward(cache.fc1Dropped)[0]
	return pred, cache, nil
}

// Forward maps a batch of windows to one prediction per window. With train
// set, per-example state is retained for a following Backward call and
// dropout is active; without it the pass is deterministic inference.
func (m *Model) Forward(batch [][][]float32, train bool) ([]float32, error) {
	preds := make([]float32, len(batch))
	if train {
		m.caches = make([]*exCache, len(batch))
	}
	for i, window := range batch {
		pred, cache, err := m.forwardExample(window, train)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		preds[i] = pred
		if train {
			m.caches[i] = cache
		}
	}
	return preds, nil
}

// Backward accumulates parameter gradients for the most recent training
// Forward, given the loss gradient w.r.t. each prediction.
func (m *Model) Backward(dPreds []float32) error {
	if len(dPreds) != len(m.caches) {
		return fmt.Errorf("got %d prediction gradients for %d cached examples", len(dPreds), len(m.caches))
	}
	for i, cache := range m.caches {
		m.backwardExample(cache, dPreds[i])
	}
	m.caches = nil
	return nil
}

func (m *Model) backwardExample(cache *exCache, dPred float32) {
	dDropped := m.fc2.backward(cache.fc1Dropped, []float32{dPred})
	if cache.headMask != nil {
		dDropped = applyMask(dDropped, cache.headMask)
	}
	for i, v := range cache.fc1Pre {
		if v <= 0 {
			dDropped[i] = 0
		}
	}
	dHeadIn := m.fc1.backward(cache.headIn, dDropped)

	width := len(dHeadIn)
	dSeq := make([][]float32, cache.seqLen)
	for t := range dSeq {
		dSeq[t] = make([]float32, width)
	}
	copy(dSeq[cache.seqLen-1], dHeadIn)

	if m.attn != nil {
		dSeq = m.attn.backward(cache.attnCache, dSeq)
	}

	for li := len(m.levels) - 1; li >= 0; li-- {
		lv := m.levels[li]
		lc := cache.levels[li]
		if lc.masks != nil {
			for t := range dSeq {
				dSeq[t] = applyMask(dSeq[t], lc.masks[t])
			}
		}
		if lv.bw != nil {
			H := m.Config.HiddenSize
			dFw := make([][]float32, len(dSeq))
			dBw := make([][]float32, len(dSeq))
			for t, row := range dSeq {
				dFw[t] = row[:H]
				dBw[t] = row[H:]
			}
			dInFw := lv.fw.backward(lc.fw, dFw)
			dInBw := reverseSeq(lv.bw.backward(lc.bw, reverseSeq(dBw)))
			for t := range dInFw {
				for k := range dInFw[t] {
					dInFw[t][k] += dInBw[t][k]
				}
			}
			dSeq = dInFw
		} else {
			dSeq = lv.fw.backward(lc.fw, dSeq)
		}
	}
}

// Params exposes the trainable parameters for the optimizer.
func (m *Model) Params() []*Param { return m.params }

// ZeroGrad clears all gradient accumulators.
func (m *Model) ZeroGrad() {
	for _, p := range m.params {
		p.zeroGrad()
	}
}

// NumParams returns the total trainable parameter count.
func (m *Model) NumParams() int {
	n := 0
	for _, p := range m.params {
		n += len(p.W)
	}
	return n
}

// State snapshots all parameter values keyed by name.
func (m *Model) State() map[string][]float32 {
	state := make(map[string][]float32, len(m.params))
	for _, p := range m.params {
		state[p.Name] = append([]float32(nil), p.W...)
	}
	return state
}

// LoadState restores parameter values from a snapshot taken by State on a
// model of identical variant and configuration.
func (m *Model) LoadState(state map[string][]float32) error {
	for _, p := range m.params {
		w, ok := state[p.Name]
		if !ok {
			return fmt.Errorf("snapshot is missing parameter %q", p.Name)
		}
		if len(w) != len(p.W) {
			return fmt.Errorf("parameter %q has %d values in snapshot, model expects %d",
				p.Name, len(w), len(p.W))
		}
		copy(p.W, w)
	}
	return nil
}
