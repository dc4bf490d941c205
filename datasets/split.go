package datasets

import "fmt"

// Split partitions the frame by row position at the cumulative trainFrac and
// trainFrac+valFrac cutoffs. Rows are never shuffled: train precedes
// validation precedes test in time, which is what keeps future information
// out of the fitted scalers and windows.
func Split(frame *Frame, trainFrac, valFrac float64) (train, val, test *Frame, err error) {
	if trainFrac <= 0 || valFrac <= 0 || trainFrac+valFrac >= 1 {
		return nil, nil, nil, fmt.Errorf("invalid split fractions train=%v val=%v", trainFrac, valFrac)
	}
	n := frame.Len()
	trainEnd := int(float64(n) * trainFrac)
	valEnd := int(float64(n) * (trainFrac + valFrac))
	if trainEnd == 0 || valEnd <= trainEnd || valEnd >= n {
		return nil, nil, nil, fmt.Errorf("frame of %d rows is too short to split %v/%v", n, trainFrac, valFrac)
	}
	return frame.slice(0, trainEnd), frame.slice(trainEnd, valEnd), frame.slice(valEnd, n), nil
}

// slice returns a view over rows [start, end). Partitions are disjoint row
// ranges, so in-place scaling of one partition never touches another.
func (f *Frame) slice(start, end int) *Frame {
	return &Frame{
		Version: f.Version,
		Names:   f.Names,
		Rows:    f.Rows[start:end],
		Target:  f.Target[start:end],
		Times:   f.Times[start:end],
	}
}
