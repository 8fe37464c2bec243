package viz

import (
	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"

	"github.com/norasector/fluxvault/pkg/protocol/frame"
)

type PlotType int

const (
	PlotTypeDefault PlotType = iota
	PlotTypeScatter
	PlotTypeLines
)

// IndexedSource is a per-tag series whose values carry request positions.
type IndexedSource interface {
	Indexed(tag frame.Tag) ([]int, []float32)
}

// SeriesPlotter charts the sent and echoed values of one tag over the last
// size requests. Echoes are drawn at the position of the request they
// answer, so a dropped echo leaves a gap instead of shifting the line.
type SeriesPlotter struct {
	tag         frame.Tag
	sent        IndexedSource
	received    IndexedSource
	size        int
	name        string
	plotFunc    func(*plot.Plot, ...interface{}) error
	plotOptions []PlotOptions
}

func NewSeriesPlotter(name string, tag frame.Tag, sent, received IndexedSource, size int) *SeriesPlotter {
	return &SeriesPlotter{
		tag:      tag,
		sent:     sent,
		received: received,
		size:     size,
		name:     name,
		plotFunc: plotutil.AddLinePoints,
	}
}

func (sp *SeriesPlotter) Name() string {
	return sp.name
}

func (sp *SeriesPlotter) SetPlotType(tp PlotType) {
	switch tp {
	case PlotTypeScatter:
		sp.plotFunc = plotutil.AddScatters
	case PlotTypeLines:
		sp.plotFunc = plotutil.AddLines
	default:
		sp.plotFunc = plotutil.AddLinePoints
	}
}

func (sp *SeriesPlotter) AddPlotOption(opt PlotOptions) {
	sp.plotOptions = append(sp.plotOptions, opt)
}

// Points returns the sent and received points inside the plotted window.
func (sp *SeriesPlotter) Points() (sent, received plotter.XYs) {
	sent = indexedXYs(sp.sent.Indexed(sp.tag))
	if sp.size > 0 && len(sent) > sp.size {
		sent = sent[len(sent)-sp.size:]
	}
	received = indexedXYs(sp.received.Indexed(sp.tag))
	switch {
	case len(sent) > 0:
		received = since(received, sent[0].X)
	case sp.size > 0 && len(received) > sp.size:
		received = received[len(received)-sp.size:]
	}
	return sent, received
}

func (sp *SeriesPlotter) GetImage() *ImageContainer {
	sent, received := sp.Points()
	if len(sent) == 0 && len(received) == 0 {
		return nil
	}

	p := plotWithDefaults()
	p.Title.Text = sp.name
	p.Y.Label.Text = "B (Gauss)"
	p.X.Label.Text = "request"

	for _, opt := range sp.plotOptions {
		opt(p)
	}

	p.Add(plotter.NewGrid())

	var lines []interface{}
	if len(sent) > 0 {
		lines = append(lines, "sent", sent)
	}
	if len(received) > 0 {
		lines = append(lines, "received", received)
	}
	if err := sp.plotFunc(p, lines...); err != nil {
		log.Warn().Err(err).Str("plot", sp.name).Msg("failed to add series")
		return nil
	}

	img, err := renderPNG(sp.name, p)
	if err != nil {
		log.Warn().Err(err).Str("plot", sp.name).Msg("failed to render series")
		return nil
	}
	return img
}

func indexedXYs(pos []int, vals []float32) plotter.XYs {
	n := len(vals)
	if len(pos) < n {
		n = len(pos)
	}
	ret := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		ret[i] = plotter.XY{X: float64(pos[i]), Y: float64(vals[i])}
	}
	return ret
}

// since drops the leading points positioned before x.
func since(xys plotter.XYs, x float64) plotter.XYs {
	for i, xy := range xys {
		if xy.X >= x {
			return xys[i:]
		}
	}
	return nil
}
