package datasets

import (
	"os"
	"path/filepath"
	"testing"
)

const fixtureHeader = "end_date,end_time,temperature,wind_speed,precipitation,humidity,peak_hour,station_type,arrivals_15min\n"

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arrivals.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadEventsSortsByTimestamp(t *testing.T) {
	// Rows deliberately out of order.
	csv := fixtureHeader +
		"2024-06-01,10:30:00,21.5,3.2,0.0,55,1,metro,7\n" +
		"2024-06-01,10:00:00,21.0,3.0,0.0,54,1,metro,5\n" +
		"2024-06-01,10:15:00,21.2,3.1,0.0,54,1,residential,6\n"
	events, err := LoadEvents(writeCSV(t, csv))
	if err != nil {
		t.Fatalf("LoadEvents error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Fatalf("events not sorted ascending at index %d", i)
		}
	}
	if events[0].Demand != 5 || events[2].Demand != 7 {
		t.Fatalf("sort did not carry values: first=%v last=%v", events[0].Demand, events[2].Demand)
	}
	if events[1].StationType != "residential" {
		t.Fatalf("unexpected station type order: %q", events[1].StationType)
	}
}

func TestLoadEventsMissingColumn(t *testing.T) {
	csv := "end_date,end_time,temperature\n2024-06-01,10:00:00,21.0\n"
	if _, err := LoadEvents(writeCSV(t, csv)); err == nil {
		t.Fatal("expected error for missing required columns")
	}
}

func TestLoadEventsEmptyFile(t *testing.T) {
	if _, err := LoadEvents(writeCSV(t, fixtureHeader)); err == nil {
		t.Fatal("expected error for CSV with no data rows")
	}
}

func TestLoadEventsUnparseableTimestamp(t *testing.T) {
	csv := fixtureHeader + "junk,10:00:00,21.0,3.0,0.0,54,1,metro,5\n"
	if _, err := LoadEvents(writeCSV(t, csv)); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestLoadEventsMinuteOnlyTime(t *testing.T) {
	csv := fixtureHeader + "2024-06-01,10:00,21.0,3.0,0.0,54,1,metro,5\n"
	events, err := LoadEvents(writeCSV(t, csv))
	if err != nil {
		t.Fatalf("LoadEvents error: %v", err)
	}
	if got := events[0].Timestamp.Minute(); got != 0 {
		t.Fatalf("unexpected minute: %d", got)
	}
}
