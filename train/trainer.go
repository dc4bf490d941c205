package train

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/velocast/velocast/datasets"
	"github.com/velocast/velocast/logger"
	"github.com/velocast/velocast/recurrent"
)

// Model is the contract the trainer and evaluator need from a variant.
// recurrent.Model satisfies it; tests substitute smaller stand-ins.
type Model interface {
	Forward(batch [][][]float32, train bool) ([]float32, error)
	Backward(dPreds []float32) error
	Params() []*recurrent.Param
	ZeroGrad()
	State() map[string][]float32
	LoadState(state map[string][]float32) error
}

// Config carries every trainer setting explicitly; there is no global
// training state.
type Config struct {
	Epochs        int
	BatchSize     int
	LearningRate  float64
	Patience      int
	CheckpointDir string
}

// History records per-epoch losses and the early-stopping outcome of one
// training run.
type History struct {
	TrainLoss    []float64
	ValLoss      []float64
	BestEpoch    int
	BestValLoss  float64
	StoppedEarly bool
}

// Trainer runs the shared training loop: mini-batches in fixed order, mean
// absolute error loss, Adam updates, early stopping on validation loss with
// best-snapshot restore.
type Trainer struct {
	cfg Config
	log logger.Logger
}

// NewTrainer builds a trainer from an explicit config.
func NewTrainer(cfg Config, log logger.Logger) *Trainer {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 32
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Trainer{cfg: cfg, log: log}
}

// BestCheckpointPath returns where Fit persists the best snapshot for a
// variant slug. FinalCheckpointPath is its end-of-training counterpart. The
// slug keeps the four variants from ever colliding.
func (t *Trainer) BestCheckpointPath(slug string) string {
	return filepath.Join(t.cfg.CheckpointDir, slug+"_best.ckpt")
}

// FinalCheckpointPath returns where Fit persists the final snapshot.
func (t *Trainer) FinalCheckpointPath(slug string) string {
	return filepath.Join(t.cfg.CheckpointDir, slug+"_final.ckpt")
}

// Fit trains the model until the epoch budget is exhausted or validation
// loss has not improved for Patience consecutive epochs. Batches are visited
// in fixed positional order every epoch, preserving the temporal structure of
// the windows. On return the model holds the parameters of its best
// validation epoch, not the last one.
func (t *Trainer) Fit(slug string, model Model, trainSet, valSet *datasets.WindowSet) (*History, error) {
	if trainSet.Len() == 0 {
		return nil, fmt.Errorf("training set is empty")
	}
	if valSet.Len() == 0 {
		return nil, fmt.Errorf("validation set is empty")
	}

	opt := NewAdam(t.cfg.LearningRate)
	hist := &History{BestValLoss: math.Inf(1)}
	bestPath := t.BestCheckpointPath(slug)
	patience := 0

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		trainLoss, err := t.trainEpoch(model, opt, trainSet)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		valLoss, err := t.meanAbsoluteError(model, valSet)
		if err != nil {
			return nil, fmt.Errorf("epoch %d validation: %w", epoch, err)
		}
		hist.TrainLoss = append(hist.TrainLoss, trainLoss)
		hist.ValLoss = append(hist.ValLoss, valLoss)
		t.log.Infof("[%s] epoch %d/%d train_loss=%.6f val_loss=%.6f",
			slug, epoch, t.cfg.Epochs, trainLoss, valLoss)

		if valLoss < hist.BestValLoss {
			hist.BestValLoss = valLoss
			hist.BestEpoch = epoch
			patience = 0
			if err := SaveCheckpoint(bestPath, slug, model.State()); err != nil {
				return nil, err
			}
		} else {
			patience++
			if patience >= t.cfg.Patience {
				hist.StoppedEarly = true
				t.log.Infof("[%s] early stopping at epoch %d (best epoch %d, val_loss=%.6f)",
					slug, epoch, hist.BestEpoch, hist.BestValLoss)
				break
			}
		}
	}

	// Final snapshot is where training ended; the best one is restored into
	// the model afterwards.
	if err := SaveCheckpoint(t.FinalCheckpointPath(slug), slug, model.State()); err != nil {
		return nil, err
	}
	best, err := LoadCheckpoint(bestPath, slug)
	if err != nil {
		return nil, err
	}
	if err := model.LoadState(best); err != nil {
		return nil, err
	}
	return hist, nil
}

// trainEpoch runs one full pass of forward, MAE loss, backward and Adam
// update per mini-batch, returning the epoch's mean absolute error.
func (t *Trainer) trainEpoch(model Model, opt *Adam, set *datasets.WindowSet) (float64, error) {
	var lossSum float64
	n := set.Len()
	for start := 0; start < n; start += t.cfg.BatchSize {
		end := start + t.cfg.BatchSize
		if end > n {
			end = n
		}
		indices := make([]int, end-start)
		for i := range indices {
			indices[i] = start + i
		}
		inputs, labels, err := set.Batch(indices)
		if err != nil {
			return 0, err
		}

		model.ZeroGrad()
		preds, err := model.Forward(inputs, true)
		if err != nil {
			return 0, err
		}
		dPreds := make([]float32, len(preds))
		inv := float32(1.0 / float64(len(preds)))
		for i, p := range preds {
			diff := p - labels[i]
			lossSum += math.Abs(float64(diff))
			switch {
			case diff > 0:
				dPreds[i] = inv
			case diff < 0:
				dPreds[i] = -inv
			}
		}
		if err := model.Backward(dPreds); err != nil {
			return 0, err
		}
		opt.Step(model.Params())
	}
	return lossSum / float64(n), nil
}

// meanAbsoluteError evaluates the model on a window set without parameter
// updates.
func (t *Trainer) meanAbsoluteError(model Model, set *datasets.WindowSet) (float64, error) {
	var lossSum float64
	n := set.Len()
	if n == 0 {
		return 0, fmt.Errorf("empty window set")
	}
	for start := 0; start < n; start += t.cfg.BatchSize {
		end := start + t.cfg.BatchSize
		if end > n {
			end = n
		}
		indices := make([]int, end-start)
		for i := range indices {
			indices[i] = start + i
		}
		inputs, labels, err := set.Batch(indices)
		if err != nil {
			return 0, err
		}
		preds, err := model.Forward(inputs, false)
		if err != nil {
			return 0, err
		}
		for i, p := range preds {
			lossSum += math.Abs(float64(p - labels[i]))
		}
	}
	return lossSum / float64(n), nil
}
