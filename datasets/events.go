package datasets

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Column names expected in the arrivals CSV export. Header matching is
// case-insensitive and whitespace-trimmed.
const (
	colEndDate     = "end_date"
	colEndTime     = "end_time"
	colTemperature = "temperature"
	colWindSpeed   = "wind_speed"
	colPrecip      = "precipitation"
	colHumidity    = "humidity"
	colPeakHour    = "peak_hour"
	colStationType = "station_type"
	colArrivals    = "arrivals_15min"
)

var requiredColumns = []string{
	colEndDate, colEndTime,
	colTemperature, colWindSpeed, colPrecip, colHumidity,
	colPeakHour, colStationType, colArrivals,
}

// Event is one bike-arrival record: a timestamp, the weather at that moment,
// the station-type category and the 15-minute arrival demand count.
type Event struct {
	Timestamp     time.Time
	Temperature   float32
	WindSpeed     float32
	Precipitation float32
	Humidity      float32
	PeakHour      float32
	StationType   string
	Demand        float32
}

var (
	dateLayouts = []string{"2006-01-02", "2006/01/02", "02/01/2006"}
	timeLayouts = []string{"15:04:05", "15:04"}
)

func parseTimestamp(dateStr, timeStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	timeStr = strings.TrimSpace(timeStr)
	for _, dl := range dateLayouts {
		for _, tl := range timeLayouts {
			if ts, err := time.Parse(dl+" "+tl, dateStr+" "+timeStr); err == nil {
				return ts, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q %q", dateStr, timeStr)
}

// LoadEvents reads the arrivals CSV at path and returns its rows sorted
// ascending by timestamp. Rolling stats and inter-arrival deltas depend on
// that order, so sorting happens here, before any feature derivation.
func LoadEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(strings.ToLower(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("required column %q not found in CSV", col)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV %s contains no data rows", path)
	}

	events := make([]Event, 0, len(records))
	for rowNum, record := range records {
		ts, err := parseTimestamp(record[colIndex[colEndDate]], record[colIndex[colEndTime]])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum+2, err)
		}
		ev := Event{Timestamp: ts, StationType: strings.TrimSpace(record[colIndex[colStationType]])}
		for _, f := range []struct {
			col string
			dst *float32
		}{
			{colTemperature, &ev.Temperature},
			{colWindSpeed, &ev.WindSpeed},
			{colPrecip, &ev.Precipitation},
			{colHumidity, &ev.Humidity},
			{colPeakHour, &ev.PeakHour},
			{colArrivals, &ev.Demand},
		} {
			val, err := parseFloat32(record[colIndex[f.col]])
			if err != nil {
				return nil, fmt.Errorf("row %d: failed to parse %s: %w", rowNum+2, f.col, err)
			}
			*f.dst = val
		}
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}
