package train

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/velocast/velocast/datasets"
	"github.com/velocast/velocast/logger"
)

// Metrics are the evaluation scores in original demand units. MAPE is a
// percentage computed only over nonzero-truth examples.
type Metrics struct {
	MAE  float64
	MSE  float64
	RMSE float64
	MAPE float64
	R2   float64
}

// String renders the metrics with four-decimal precision.
func (m *Metrics) String() string {
	return fmt.Sprintf("MAE=%.4f MSE=%.4f RMSE=%.4f MAPE=%.4f%% R2=%.4f",
		m.MAE, m.MSE, m.RMSE, m.MAPE, m.R2)
}

// Evaluator scores a trained model on a held-out window set.
type Evaluator struct {
	batchSize int
	log       logger.Logger
}

// NewEvaluator builds an evaluator; batchSize only controls forward-pass
// chunking.
func NewEvaluator(batchSize int, log logger.Logger) *Evaluator {
	if batchSize < 1 {
		batchSize = 32
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Evaluator{batchSize: batchSize, log: log}
}

// Evaluate runs the model over the test windows without parameter updates,
// inverse-transforms predictions and targets back to demand units with the
// fitted target scaler, and computes the metric set.
func (e *Evaluator) Evaluate(model Model, testSet *datasets.WindowSet, target *datasets.MinMaxScaler) (*Metrics, error) {
	n := testSet.Len()
	if n == 0 {
		return nil, fmt.Errorf("test set is empty")
	}
	preds := make([]float32, 0, n)
	labels := make([]float32, 0, n)
	for start := 0; start < n; start += e.batchSize {
		end := start + e.batchSize
		if end > n {
			end = n
		}
		indices := make([]int, end-start)
		for i := range indices {
			indices[i] = start + i
		}
		inputs, batchLabels, err := testSet.Batch(indices)
		if err != nil {
			return nil, err
		}
		batchPreds, err := model.Forward(inputs, false)
		if err != nil {
			return nil, err
		}
		preds = append(preds, batchPreds...)
		labels = append(labels, batchLabels...)
	}

	truth := toFloat64(target.InverseSlice(labels))
	estimates := toFloat64(target.InverseSlice(preds))
	return ComputeMetrics(truth, estimates)
}

// ComputeMetrics computes MAE, MSE, RMSE, MAPE and R² over paired true and
// predicted values in demand units. Zero-truth examples are excluded from
// MAPE entirely (numerator and denominator); including them would contribute
// undefined or infinite terms.
func ComputeMetrics(truth, estimates []float64) (*Metrics, error) {
	if len(truth) != len(estimates) {
		return nil, fmt.Errorf("got %d true values and %d predictions", len(truth), len(estimates))
	}
	if len(truth) == 0 {
		return nil, fmt.Errorf("no examples to evaluate")
	}

	var absSum, sqSum, pctSum float64
	pctCount := 0
	for i, y := range truth {
		diff := estimates[i] - y
		absSum += math.Abs(diff)
		sqSum += diff * diff
		if y != 0 {
			pctSum += math.Abs(diff / y)
			pctCount++
		}
	}

	m := &Metrics{
		MAE: absSum / float64(len(truth)),
		MSE: sqSum / float64(len(truth)),
	}
	m.RMSE = math.Sqrt(m.MSE)
	if pctCount > 0 {
		m.MAPE = pctSum / float64(pctCount) * 100
	}
	m.R2 = stat.RSquaredFrom(estimates, truth, nil)
	return m, nil
}

func toFloat64(vs []float32) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}
