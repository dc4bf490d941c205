package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/velocast/velocast/config"
	"github.com/velocast/velocast/logger"
)

// writeSyntheticCSV generates a 15-minute cadence arrivals table with a
// constant demand value.
func writeSyntheticCSV(t *testing.T, rows int, demand float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("end_date,end_time,temperature,wind_speed,precipitation,humidity,peak_hour,station_type,arrivals_15min\n")
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	stations := []string{"metro", "residential"}
	for i := 0; i < rows; i++ {
		ts := base.Add(time.Duration(i) * 15 * time.Minute)
		peak := 0
		if h := ts.Hour(); h >= 7 && h <= 9 || h >= 16 && h <= 18 {
			peak = 1
		}
		fmt.Fprintf(&b, "%s,%s,%.1f,%.1f,%.1f,%d,%d,%s,%g\n",
			ts.Format("2006-01-02"), ts.Format("15:04:05"),
			15+5*math.Sin(float64(i)/30), float64(i%5), float64(i%7)/10, 40+i%30,
			peak, stations[i%len(stations)], demand)
	}
	path := filepath.Join(t.TempDir(), "arrivals.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write CSV: %v", err)
	}
	return path
}

// TestRunConstantDemandConverges is the wiring sanity check: with a constant
// demand of 5, every variant's de-scaled predictions must come out at (or
// extremely near) 5 after a few epochs.
func TestRunConstantDemandConverges(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end training run")
	}
	csvPath := writeSyntheticCSV(t, 1000, 5)

	cfg := &config.Config{}
	cfg.Data.CSVPath = csvPath
	cfg.Model.HiddenSize = 16
	cfg.Model.Layers = 1
	cfg.Model.Heads = 2
	cfg.Model.Seed = 42
	cfg.Training.Epochs = 3
	cfg.Training.Patience = 2
	cfg.Training.CheckpointDir = filepath.Join(t.TempDir(), "checkpoints")
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}

	results, err := Run(cfg, logger.NopLogger{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for _, r := range results {
		if r.Metrics.MAE > 0.05 {
			t.Fatalf("%s: MAE = %v on constant demand, want ~0", r.Variant.Slug(), r.Metrics.MAE)
		}
		if len(r.History.TrainLoss) == 0 {
			t.Fatalf("%s: empty training history", r.Variant.Slug())
		}
		for _, name := range []string{r.Variant.Slug() + "_best.ckpt", r.Variant.Slug() + "_final.ckpt"} {
			if _, err := os.Stat(filepath.Join(cfg.Training.CheckpointDir, name)); err != nil {
				t.Fatalf("missing checkpoint %s: %v", name, err)
			}
		}
	}
}

func TestRunMissingCSV(t *testing.T) {
	cfg := &config.Config{}
	cfg.Data.CSVPath = filepath.Join(t.TempDir(), "nope.csv")
	cfg.SetDefaults()
	if _, err := Run(cfg, nil); err == nil {
		t.Fatal("expected error for missing CSV")
	}
}
