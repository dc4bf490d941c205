package datasets

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// FeatureSetVersion identifies the ordered feature layout produced by
// BuildFrame. Bump it whenever the list below changes, so that windows built
// with one layout are never fed to a model trained on another.
const FeatureSetVersion = 1

// Fixed feature names, in emission order. Station one-hot columns are
// appended between peak_hour and roll_mean, one per observed category,
// sorted by category name for a stable order.
const (
	featHourSin      = "hour_sin"
	featHourCos      = "hour_cos"
	featDowSin       = "dow_sin"
	featDowCos       = "dow_cos"
	featMonthSin     = "month_sin"
	featMonthCos     = "month_cos"
	featWeekend      = "is_weekend"
	featDeltaMinutes = "delta_minutes"
	featTemperature  = "temperature"
	featWindSpeed    = "wind_speed"
	featPrecip       = "precipitation"
	featHumidity     = "humidity"
	featPeakHour     = "peak_hour"
	featRollMean     = "roll_mean"
	featRollStd      = "roll_std"
)

// Frame is a feature-engineered, time-ordered table: one row of Features per
// event, the demand target alongside, and the explicit ordered feature list.
// The same Names order is used at windowing time and at inference time.
type Frame struct {
	Version int
	Names   []string
	Rows    [][]float32
	Target  []float32
	Times   []time.Time
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// FeatureDim returns the width of each feature vector.
func (f *Frame) FeatureDim() int { return len(f.Names) }

// Col returns the index of the named feature, or -1.
func (f *Frame) Col(name string) int {
	for i, n := range f.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// pyWeekday maps Go's Sunday-based weekday to the Monday=0..Sunday=6
// convention the weekend flag is defined against.
func pyWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func cyclical(value, period float64) (sin, cos float32) {
	angle := 2 * math.Pi * value / period
	return float32(math.Sin(angle)), float32(math.Cos(angle))
}

// BuildFrame derives the model features from time-sorted events. rollWindow
// is the look-back length of the demand rolling stats: the window for row i
// covers the rollWindow rows before i, never row i itself. Partial windows
// still produce a value (empty window mean/std are 0, single-element window
// std is 0), so no row is dropped.
func BuildFrame(events []Event, rollWindow int) (*Frame, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to build features from")
	}
	if rollWindow < 1 {
		return nil, fmt.Errorf("rolling window must be >= 1, got %d", rollWindow)
	}

	// Observed station categories, sorted for a stable one-hot order.
	seen := make(map[string]bool)
	for _, ev := range events {
		seen[ev.StationType] = true
	}
	stations := make([]string, 0, len(seen))
	for s := range seen {
		stations = append(stations, s)
	}
	sort.Strings(stations)

	names := []string{
		featHourSin, featHourCos,
		featDowSin, featDowCos,
		featMonthSin, featMonthCos,
		featWeekend, featDeltaMinutes,
		featTemperature, featWindSpeed, featPrecip, featHumidity,
		featPeakHour,
	}
	stationCol := make(map[string]int, len(stations))
	for _, s := range stations {
		stationCol[s] = len(names)
		names = append(names, "station_"+s)
	}
	names = append(names, featRollMean, featRollStd)

	frame := &Frame{
		Version: FeatureSetVersion,
		Names:   names,
		Rows:    make([][]float32, len(events)),
		Target:  make([]float32, len(events)),
		Times:   make([]time.Time, len(events)),
	}

	for i, ev := range events {
		row := make([]float32, len(names))

		hourSin, hourCos := cyclical(float64(ev.Timestamp.Hour()), 24)
		dowSin, dowCos := cyclical(float64(pyWeekday(ev.Timestamp)), 7)
		monthSin, monthCos := cyclical(float64(ev.Timestamp.Month()), 12)
		row[0], row[1] = hourSin, hourCos
		row[2], row[3] = dowSin, dowCos
		row[4], row[5] = monthSin, monthCos

		if wd := pyWeekday(ev.Timestamp); wd == 5 || wd == 6 {
			row[6] = 1
		}

		// Inter-arrival delta in minutes; the first row has no prior event.
		if i > 0 {
			row[7] = float32(ev.Timestamp.Sub(events[i-1].Timestamp).Minutes())
		}

		row[8] = ev.Temperature
		row[9] = ev.WindSpeed
		row[10] = ev.Precipitation
		row[11] = ev.Humidity
		row[12] = ev.PeakHour
		row[stationCol[ev.StationType]] = 1

		mean, std := rollingStats(events, i, rollWindow)
		row[len(row)-2] = mean
		row[len(row)-1] = std

		frame.Rows[i] = row
		frame.Target[i] = ev.Demand
		frame.Times[i] = ev.Timestamp
	}
	return frame, nil
}

// rollingStats computes mean and sample standard deviation of the demand over
// the window of prior rows [i-w, i). The current row is excluded. Windows
// with no observations yield (0, 0); a single observation yields std 0.
func rollingStats(events []Event, i, w int) (mean, std float32) {
	start := i - w
	if start < 0 {
		start = 0
	}
	n := i - start
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, ev := range events[start:i] {
		sum += float64(ev.Demand)
	}
	m := sum / float64(n)
	if n < 2 {
		return float32(m), 0
	}
	var sq float64
	for _, ev := range events[start:i] {
		d := float64(ev.Demand) - m
		sq += d * d
	}
	return float32(m), float32(math.Sqrt(sq / float64(n-1)))
}
