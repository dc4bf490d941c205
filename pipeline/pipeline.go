// Package pipeline wires the full run: load the arrivals CSV, engineer
// features, split by time, fit scalers on the training partition, window each
// partition, then train and evaluate the four model variants one after
// another. Control flow is strictly sequential; the first error aborts the
// run.
package pipeline

import (
	"fmt"

	"github.com/velocast/velocast/config"
	"github.com/velocast/velocast/datasets"
	"github.com/velocast/velocast/logger"
	"github.com/velocast/velocast/recurrent"
	"github.com/velocast/velocast/train"
)

// Result is one variant's training history and test metrics.
type Result struct {
	Variant recurrent.Variant
	History *train.History
	Metrics *train.Metrics
}

// Run executes the whole pipeline described by cfg and returns one Result
// per variant, in training order.
func Run(cfg *config.Config, log logger.Logger) ([]Result, error) {
	if log == nil {
		log = logger.NopLogger{}
	}

	events, err := datasets.LoadEvents(cfg.Data.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	log.Infof("loaded %d events from %s", len(events), cfg.Data.CSVPath)

	frame, err := datasets.BuildFrame(events, cfg.Data.RollingWindow)
	if err != nil {
		return nil, fmt.Errorf("build features: %w", err)
	}
	log.Debugw("feature frame built", map[string]any{
		"rows": frame.Len(), "features": frame.FeatureDim(), "version": frame.Version,
	})

	trainFrame, valFrame, testFrame, err := datasets.Split(frame, cfg.Data.TrainFraction, cfg.Data.ValFraction)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	log.Infof("split %d rows into train=%d val=%d test=%d",
		frame.Len(), trainFrame.Len(), valFrame.Len(), testFrame.Len())

	// Scalers are fitted on the training partition only and applied
	// unchanged to validation and test.
	features, err := datasets.FitStandardScaler(trainFrame)
	if err != nil {
		return nil, fmt.Errorf("fit feature scaler: %w", err)
	}
	target, err := datasets.FitMinMaxScaler(trainFrame)
	if err != nil {
		return nil, fmt.Errorf("fit target scaler: %w", err)
	}
	for _, part := range []*datasets.Frame{trainFrame, valFrame, testFrame} {
		if err := features.Transform(part); err != nil {
			return nil, fmt.Errorf("scale features: %w", err)
		}
		if err := target.TransformTarget(part); err != nil {
			return nil, fmt.Errorf("scale target: %w", err)
		}
	}

	// Each partition is windowed independently, so windows never cross a
	// partition boundary.
	w := cfg.Data.WindowLength
	trainSet, err := datasets.MakeWindows(trainFrame, w)
	if err != nil {
		return nil, fmt.Errorf("window train partition: %w", err)
	}
	valSet, err := datasets.MakeWindows(valFrame, w)
	if err != nil {
		return nil, fmt.Errorf("window validation partition: %w", err)
	}
	testSet, err := datasets.MakeWindows(testFrame, w)
	if err != nil {
		return nil, fmt.Errorf("window test partition: %w", err)
	}
	log.Infof("windows: train=%d val=%d test=%d (length %d, %d features)",
		trainSet.Len(), valSet.Len(), testSet.Len(), w, frame.FeatureDim())

	trainer := train.NewTrainer(train.Config{
		Epochs:        cfg.Training.Epochs,
		BatchSize:     cfg.Training.BatchSize,
		LearningRate:  cfg.Training.LearningRate,
		Patience:      cfg.Training.Patience,
		CheckpointDir: cfg.Training.CheckpointDir,
	}, log)
	evaluator := train.NewEvaluator(cfg.Training.BatchSize, log)

	var results []Result
	for _, variant := range recurrent.AllVariants() {
		model, err := recurrent.New(variant, recurrent.Config{
			InputDim:   frame.FeatureDim(),
			HiddenSize: cfg.Model.HiddenSize,
			Layers:     cfg.Model.Layers,
			Dropout:    cfg.Model.Dropout,
			Heads:      cfg.Model.Heads,
			Seed:       cfg.Model.Seed,
		})
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", variant.Slug(), err)
		}
		log.Infof("training %s (%d parameters)", variant.Slug(), model.NumParams())

		hist, err := trainer.Fit(variant.Slug(), model, trainSet, valSet)
		if err != nil {
			return nil, fmt.Errorf("train %s: %w", variant.Slug(), err)
		}
		if cfg.Training.PlotDir != "" {
			if err := train.SaveLossCurve(cfg.Training.PlotDir, variant.Slug(), hist); err != nil {
				log.Warnf("failed to plot loss curve for %s: %v", variant.Slug(), err)
			}
		}

		metrics, err := evaluator.Evaluate(model, testSet, target)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", variant.Slug(), err)
		}
		log.Infof("[%s] test metrics: %s", variant.Slug(), metrics)
		results = append(results, Result{Variant: variant, History: hist, Metrics: metrics})
	}

	log.Infof("variant comparison (test partition):")
	for _, r := range results {
		log.Infof("  %-18s %s", r.Variant.Slug(), r.Metrics)
	}
	return results, nil
}
