package datasets

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// WindowSet holds the sliding windows of one partition: Windows has shape
// (num_windows, Steps, FeatureDim) and Labels pairs each window with the
// scaled target of the row immediately after it. Windows are built per
// partition, after splitting, so no window ever crosses a partition boundary.
type WindowSet struct {
	Windows    [][][]float32
	Labels     []float32
	Steps      int
	FeatureDim int

	// BatchSize used by Yield when iterating as a gomlx dataset.
	BatchSize int
	cursor    int
}

// MakeWindows slides a length-w window over the scaled frame. For a frame of
// N rows it emits exactly N-w (window, label) pairs; a frame with N <= w
// yields an empty set. Every value is passed through the NaN/Inf -> 0
// sanitizer rather than dropped.
func MakeWindows(frame *Frame, w int) (*WindowSet, error) {
	if w < 1 {
		return nil, fmt.Errorf("window length must be >= 1, got %d", w)
	}
	n := frame.Len() - w
	if n < 0 {
		n = 0
	}
	set := &WindowSet{
		Windows:    make([][][]float32, 0, n),
		Labels:     make([]float32, 0, n),
		Steps:      w,
		FeatureDim: frame.FeatureDim(),
		BatchSize:  32,
	}
	for i := w; i < frame.Len(); i++ {
		window := make([][]float32, w)
		for t := 0; t < w; t++ {
			src := frame.Rows[i-w+t]
			row := make([]float32, len(src))
			for j, v := range src {
				row[j] = sanitize32(v)
			}
			window[t] = row
		}
		set.Windows = append(set.Windows, window)
		set.Labels = append(set.Labels, sanitize32(frame.Target[i]))
	}
	return set, nil
}

// Len returns the number of windows.
func (s *WindowSet) Len() int { return len(s.Windows) }

// Batch returns windows and labels for the provided indices. The returned
// slices reference the set's windows, which are treated as immutable once
// built.
func (s *WindowSet) Batch(indices []int) ([][][]float32, []float32, error) {
	inputs := make([][][]float32, len(indices))
	labels := make([]float32, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(s.Windows) {
			return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(s.Windows))
		}
		inputs[i] = s.Windows[idx]
		labels[i] = s.Labels[idx]
	}
	return inputs, labels, nil
}

// Tensors reads a batch of windows and returns them as gomlx tensors.
func (s *WindowSet) Tensors(indices []int) (inputs *tensors.Tensor, labels *tensors.Tensor, err error) {
	in, la, err := s.Batch(indices)
	if err != nil {
		return nil, nil, err
	}
	flat, err := MakeWindowBatchFlat(in, la)
	if err != nil {
		return nil, nil, err
	}
	return flat.ToGomlxTensors()
}

// Name returns the name of the dataset.
func (s *WindowSet) Name() string { return "WindowSet" }

// Yield returns the next batch for the gomlx Dataset interface, walking the
// set sequentially in BatchSize steps. It reports io.EOF once exhausted.
func (s *WindowSet) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if s.cursor >= s.Len() {
		return nil, nil, nil, io.EOF
	}
	end := s.cursor + s.BatchSize
	if end > s.Len() {
		end = s.Len()
	}
	indices := make([]int, 0, end-s.cursor)
	for i := s.cursor; i < end; i++ {
		indices = append(indices, i)
	}
	s.cursor = end
	in, la, err := s.Tensors(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// Restart resets the Yield cursor for a new epoch.
func (s *WindowSet) Restart() error {
	s.cursor = 0
	return nil
}

// WindowBatchFlat stores a batch in flat contiguous buffers.
type WindowBatchFlat struct {
	Inputs     []float32
	Labels     []float32
	BatchSize  int
	Steps      int
	FeatureDim int
}

// MakeWindowBatchFlat flattens a batch of windows into contiguous buffers.
func MakeWindowBatchFlat(windows [][][]float32, labels []float32) (*WindowBatchFlat, error) {
	if len(windows) != len(labels) {
		return nil, fmt.Errorf("windows and labels batch sizes don't match: %d != %d", len(windows), len(labels))
	}
	if len(windows) == 0 {
		return &WindowBatchFlat{}, nil
	}
	steps := len(windows[0])
	featDim := len(windows[0][0])
	flat := &WindowBatchFlat{
		Inputs:     make([]float32, len(windows)*steps*featDim),
		Labels:     append([]float32(nil), labels...),
		BatchSize:  len(windows),
		Steps:      steps,
		FeatureDim: featDim,
	}
	for i, window := range windows {
		if len(window) != steps {
			return nil, fmt.Errorf("inconsistent window length at example %d: expected %d, got %d",
				i, steps, len(window))
		}
		for t, row := range window {
			if len(row) != featDim {
				return nil, fmt.Errorf("inconsistent feature dimension at example %d step %d: expected %d, got %d",
					i, t, featDim, len(row))
			}
			copy(flat.Inputs[(i*steps+t)*featDim:], row)
		}
	}
	return flat, nil
}

// ToGomlxTensors converts WindowBatchFlat to gomlx tensors.
func (b *WindowBatchFlat) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if b.BatchSize == 0 || b.Steps == 0 || b.FeatureDim == 0 {
		emptyInputs := make([][][]float32, 0)
		emptyLabels := make([]float32, 0)
		return tensors.FromAnyValue(emptyInputs), tensors.FromAnyValue(emptyLabels), nil
	}
	inputs := make([][][]float32, b.BatchSize)
	for i := range b.BatchSize {
		window := make([][]float32, b.Steps)
		for t := range b.Steps {
			off := (i*b.Steps + t) * b.FeatureDim
			window[t] = b.Inputs[off : off+b.FeatureDim]
		}
		inputs[i] = window
	}
	return tensors.FromAnyValue(inputs), tensors.FromAnyValue(b.Labels), nil
}
