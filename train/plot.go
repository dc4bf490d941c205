package train

import (
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveLossCurve writes a PNG of the training and validation loss per epoch
// for one variant.
func SaveLossCurve(outDir, slug string, hist *History) error {
	p := plot.New()
	p.Title.Text = slug + " training"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "MAE (scaled)"

	trainXY := make(plotter.XYs, len(hist.TrainLoss))
	valXY := make(plotter.XYs, len(hist.ValLoss))
	for i := range hist.TrainLoss {
		trainXY[i] = plotter.XY{X: float64(i + 1), Y: hist.TrainLoss[i]}
		valXY[i] = plotter.XY{X: float64(i + 1), Y: hist.ValLoss[i]}
	}

	trainLine, err := plotter.NewLine(trainXY)
	if err != nil {
		return err
	}
	trainLine.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	trainLine.Width = vg.Points(1.2)
	p.Add(trainLine)
	p.Legend.Add("train", trainLine)

	valLine, err := plotter.NewLine(valXY)
	if err != nil {
		return err
	}
	valLine.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	valLine.Width = vg.Points(1.2)
	p.Add(valLine)
	p.Legend.Add("validation", valLine)

	p.Add(plotter.NewGrid())

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	outPath := filepath.Join(outDir, slug+"_loss.png")
	return p.Save(8*vg.Inch, 6*vg.Inch, outPath)
}
