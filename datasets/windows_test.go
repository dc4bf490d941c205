package datasets

import (
	"io"
	"math"
	"testing"
	"time"
)

func TestMakeWindowsCountAndShape(t *testing.T) {
	events := syntheticEvents(40, 15*time.Minute, func(i int) float32 { return float32(i) })
	frame, err := BuildFrame(events, 15)
	if err != nil {
		t.Fatalf("BuildFrame error: %v", err)
	}
	const w = 15
	set, err := MakeWindows(frame, w)
	if err != nil {
		t.Fatalf("MakeWindows error: %v", err)
	}
	if set.Len() != frame.Len()-w {
		t.Fatalf("window count = %d, want N-W = %d", set.Len(), frame.Len()-w)
	}
	for i, window := range set.Windows {
		if len(window) != w {
			t.Fatalf("window %d has %d steps, want %d", i, len(window), w)
		}
		for _, row := range window {
			if len(row) != frame.FeatureDim() {
				t.Fatalf("window %d row width %d, want %d", i, len(row), frame.FeatureDim())
			}
		}
	}
	// The label of window i is the target of row i+w, the row immediately
	// after the window.
	if set.Labels[0] != frame.Target[w] {
		t.Fatalf("label 0 = %v, want %v", set.Labels[0], frame.Target[w])
	}
	if set.Labels[set.Len()-1] != frame.Target[frame.Len()-1] {
		t.Fatalf("last label = %v, want %v", set.Labels[set.Len()-1], frame.Target[frame.Len()-1])
	}
}

func TestMakeWindowsShortPartition(t *testing.T) {
	events := syntheticEvents(10, 15*time.Minute, func(int) float32 { return 1 })
	frame, err := BuildFrame(events, 15)
	if err != nil {
		t.Fatalf("BuildFrame error: %v", err)
	}
	set, err := MakeWindows(frame, 15)
	if err != nil {
		t.Fatalf("MakeWindows error: %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("short partition produced %d windows, want 0", set.Len())
	}
}

func TestMakeWindowsSanitizesNonFinite(t *testing.T) {
	events := syntheticEvents(20, 15*time.Minute, func(int) float32 { return 1 })
	frame, err := BuildFrame(events, 15)
	if err != nil {
		t.Fatalf("BuildFrame error: %v", err)
	}
	frame.Rows[17][0] = float32(math.NaN())
	frame.Rows[18][1] = float32(math.Inf(1))
	frame.Target[19] = float32(math.Inf(-1))

	set, err := MakeWindows(frame, 15)
	if err != nil {
		t.Fatalf("MakeWindows error: %v", err)
	}
	for i, window := range set.Windows {
		for t2, row := range window {
			for j, v := range row {
				f := float64(v)
				if math.IsNaN(f) || math.IsInf(f, 0) {
					t.Fatalf("non-finite value survived at window %d step %d col %d", i, t2, j)
				}
			}
		}
	}
	for i, v := range set.Labels {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("non-finite label survived at %d", i)
		}
	}
}

func TestWindowSetBatch(t *testing.T) {
	events := syntheticEvents(25, 15*time.Minute, func(i int) float32 { return float32(i) })
	frame, err := BuildFrame(events, 15)
	if err != nil {
		t.Fatalf("BuildFrame error: %v", err)
	}
	set, err := MakeWindows(frame, 5)
	if err != nil {
		t.Fatalf("MakeWindows error: %v", err)
	}
	inputs, labels, err := set.Batch([]int{0, 3, 7})
	if err != nil {
		t.Fatalf("Batch error: %v", err)
	}
	if len(inputs) != 3 || len(labels) != 3 {
		t.Fatalf("batch sizes = %d/%d, want 3/3", len(inputs), len(labels))
	}
	if labels[1] != set.Labels[3] {
		t.Fatalf("batch label mismatch: %v != %v", labels[1], set.Labels[3])
	}
	if _, _, err := set.Batch([]int{set.Len()}); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestMakeWindowBatchFlat(t *testing.T) {
	windows := [][][]float32{
		{{1, 2}, {3, 4}},
		{{5, 6}, {7, 8}},
	}
	labels := []float32{0.1, 0.2}
	flat, err := MakeWindowBatchFlat(windows, labels)
	if err != nil {
		t.Fatalf("MakeWindowBatchFlat error: %v", err)
	}
	if flat.BatchSize != 2 || flat.Steps != 2 || flat.FeatureDim != 2 {
		t.Fatalf("unexpected flat dims: %+v", flat)
	}
	want := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	for i, v := range want {
		if flat.Inputs[i] != v {
			t.Fatalf("flat input %d = %v, want %v", i, flat.Inputs[i], v)
		}
	}

	ragged := [][][]float32{{{1, 2}}, {{1, 2, 3}}}
	if _, err := MakeWindowBatchFlat(ragged, []float32{0, 0}); err == nil {
		t.Fatal("expected error for ragged feature dimensions")
	}
	if _, err := MakeWindowBatchFlat(windows, []float32{0}); err == nil {
		t.Fatal("expected error for mismatched label count")
	}
}

func TestWindowSetTensors(t *testing.T) {
	events := syntheticEvents(20, 15*time.Minute, func(i int) float32 { return float32(i) })
	frame, err := BuildFrame(events, 15)
	if err != nil {
		t.Fatalf("BuildFrame error: %v", err)
	}
	set, err := MakeWindows(frame, 5)
	if err != nil {
		t.Fatalf("MakeWindows error: %v", err)
	}

	inT, labT, err := set.Tensors([]int{0, 1, 2})
	if err != nil {
		t.Fatalf("Tensors error: %v", err)
	}
	if inT == nil || labT == nil {
		t.Fatalf("Tensors returned nil tensor(s)")
	}
	wantIn := []int{3, 5, frame.FeatureDim()}
	gotIn := inT.Shape().Dimensions
	if len(gotIn) != len(wantIn) {
		t.Fatalf("input tensor rank = %d, want %d", len(gotIn), len(wantIn))
	}
	for i, want := range wantIn {
		if gotIn[i] != want {
			t.Fatalf("input tensor shape = %v, want %v", gotIn, wantIn)
		}
	}
	gotLab := labT.Shape().Dimensions
	if len(gotLab) != 1 || gotLab[0] != 3 {
		t.Fatalf("label tensor shape = %v, want [3]", gotLab)
	}

	if _, _, err := set.Tensors([]int{set.Len()}); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestWindowSetYieldWalksAndSignalsEOF(t *testing.T) {
	events := syntheticEvents(20, 15*time.Minute, func(i int) float32 { return float32(i) })
	frame, err := BuildFrame(events, 15)
	if err != nil {
		t.Fatalf("BuildFrame error: %v", err)
	}
	set, err := MakeWindows(frame, 5)
	if err != nil {
		t.Fatalf("MakeWindows error: %v", err)
	}
	set.BatchSize = 8

	// 15 windows in BatchSize-8 steps: one full batch, then the 7 leftovers.
	for _, wantBatch := range []int{8, 7} {
		_, ins, labs, err := set.Yield()
		if err != nil {
			t.Fatalf("Yield error: %v", err)
		}
		if len(ins) != 1 || len(labs) != 1 {
			t.Fatalf("Yield returned %d input and %d label tensors, want 1 and 1", len(ins), len(labs))
		}
		dims := ins[0].Shape().Dimensions
		if dims[0] != wantBatch || dims[1] != 5 || dims[2] != frame.FeatureDim() {
			t.Fatalf("yielded input shape = %v, want [%d 5 %d]", dims, wantBatch, frame.FeatureDim())
		}
		if labs[0].Shape().Dimensions[0] != wantBatch {
			t.Fatalf("yielded label shape = %v, want [%d]", labs[0].Shape().Dimensions, wantBatch)
		}
	}
	if _, _, _, err := set.Yield(); err != io.EOF {
		t.Fatalf("exhausted Yield error = %v, want io.EOF", err)
	}

	// Restart rewinds for the next epoch.
	if err := set.Restart(); err != nil {
		t.Fatalf("Restart error: %v", err)
	}
	_, ins, _, err := set.Yield()
	if err != nil {
		t.Fatalf("Yield after Restart error: %v", err)
	}
	if ins[0].Shape().Dimensions[0] != 8 {
		t.Fatalf("first batch after Restart has size %d, want 8", ins[0].Shape().Dimensions[0])
	}
}

func TestWindowsNeverCrossPartitions(t *testing.T) {
	// Mark each row's first feature with its global index, split, window
	// each partition, and check no window mixes rows from two partitions.
	events := syntheticEvents(60, 15*time.Minute, func(i int) float32 { return float32(i) })
	frame, err := BuildFrame(events, 15)
	if err != nil {
		t.Fatalf("BuildFrame error: %v", err)
	}
	for i, row := range frame.Rows {
		row[0] = float32(i)
	}
	trainFrame, valFrame, testFrame, err := Split(frame, 0.7, 0.15)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	const w = 5
	bounds := []struct {
		part     *Frame
		min, max float32
	}{
		{trainFrame, 0, 41},
		{valFrame, 42, 50},
		{testFrame, 51, 59},
	}
	for _, b := range bounds {
		set, err := MakeWindows(b.part, w)
		if err != nil {
			t.Fatalf("MakeWindows error: %v", err)
		}
		if set.Len() != b.part.Len()-w {
			t.Fatalf("partition window count = %d, want %d", set.Len(), b.part.Len()-w)
		}
		for i, window := range set.Windows {
			for _, row := range window {
				if row[0] < b.min || row[0] > b.max {
					t.Fatalf("window %d contains row %v outside partition [%v, %v]",
						i, row[0], b.min, b.max)
				}
			}
		}
	}
}
