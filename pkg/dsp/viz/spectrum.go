package viz

import (
	"math"
	"math/cmplx"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"

	"github.com/norasector/fluxvault/pkg/protocol/frame"
)

// minSpectrumLen is the shortest delta history worth transforming.
const minSpectrumLen = 8

// SpectrumPlotter charts the amplitude spectrum of the echo error of one tag,
// which exposes periodic disturbances on the device side. sampleRate is the
// set-point rate in Hz.
type SpectrumPlotter struct {
	tag         frame.Tag
	deltas      SeriesSource
	size        int
	sampleRate  float64
	name        string
	plotOptions []PlotOptions
}

func NewSpectrumPlotter(name string, tag frame.Tag, deltas SeriesSource, size int, sampleRate float64) *SpectrumPlotter {
	return &SpectrumPlotter{
		tag:        tag,
		deltas:     deltas,
		size:       size,
		sampleRate: sampleRate,
		name:       name,
	}
}

func (sp *SpectrumPlotter) Name() string {
	return sp.name
}

func (sp *SpectrumPlotter) AddPlotOption(opt PlotOptions) {
	sp.plotOptions = append(sp.plotOptions, opt)
}

// Spectrum returns frequency/amplitude pairs for the most recent deltas, or
// nil when there is not enough history.
func (sp *SpectrumPlotter) Spectrum() plotter.XYs {
	data := tail(sp.deltas.Snapshot(sp.tag), sp.size)
	if len(data) < minSpectrumLen {
		return nil
	}

	mean := stat.Mean(data, nil)
	for i := range data {
		data[i] -= mean
	}
	window.Blackman(data)

	f := fourier.NewFFT(len(data))
	coeffs := f.Coefficients(nil, data)

	ret := make(plotter.XYs, len(coeffs))
	for i, c := range coeffs {
		ret[i] = plotter.XY{
			X: f.Freq(i) * sp.sampleRate,
			Y: 2 * cmplx.Abs(c) / float64(len(data)),
		}
	}
	return ret
}

func (sp *SpectrumPlotter) GetImage() *ImageContainer {
	xys := sp.Spectrum()
	if xys == nil {
		return nil
	}

	p := plotWithDefaults()
	p.Title.Text = sp.name
	p.Y.Label.Text = "|error| (Gauss)"
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Min = 0

	for _, opt := range sp.plotOptions {
		opt(p)
	}

	p.Add(plotter.NewGrid())
	if err := plotutil.AddLines(p, "error", xys); err != nil {
		log.Warn().Err(err).Str("plot", sp.name).Msg("failed to add spectrum")
		return nil
	}

	img, err := renderPNG(sp.name, p)
	if err != nil {
		log.Warn().Err(err).Str("plot", sp.name).Msg("failed to render spectrum")
		return nil
	}
	return img
}

// Peak returns the frequency with the largest amplitude, ignoring DC.
func (sp *SpectrumPlotter) Peak() (freq, amplitude float64) {
	xys := sp.Spectrum()
	amplitude = math.Inf(-1)
	for i := 1; i < len(xys); i++ {
		if xys[i].Y > amplitude {
			freq, amplitude = xys[i].X, xys[i].Y
		}
	}
	if len(xys) < 2 {
		return 0, 0
	}
	return freq, amplitude
}
