package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/norasector/fluxvault/pkg/dsp/viz"
	"github.com/norasector/fluxvault/pkg/fluxvault"
	"github.com/norasector/fluxvault/pkg/fluxvault/config"
	"github.com/norasector/fluxvault/pkg/fluxvault/device"
	"github.com/norasector/fluxvault/pkg/fluxvault/device/file"
	"github.com/norasector/fluxvault/pkg/fluxvault/device/loopback"
	"github.com/norasector/fluxvault/pkg/fluxvault/device/record"
	"github.com/norasector/fluxvault/pkg/fluxvault/device/serial"
	"github.com/norasector/fluxvault/pkg/observability"
	"github.com/norasector/fluxvault/pkg/protocol/frame"
	"github.com/norasector/fluxvault/pkg/setpoint"
	"github.com/norasector/fluxvault/pkg/util"
)

const (
	fileByteReadSize = frame.Size
	fileReadDelay    = 10 * time.Millisecond
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "fluxvault.yaml", "YAML config file")

	flag.Parse()

	opts, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configFile).Msg("error loading config file")
	}

	level, err := zerolog.ParseLevel(opts.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	log.Logger = log.Logger.Level(level)

	var setpoints []fluxvault.Triple
	if opts.Mode == config.ModeBatch {
		setpoints, err = loadSetpoints(opts)
		if err != nil {
			log.Fatal().Err(err).Str("source", opts.Setpoints.Source).Msg("failed to load set-points")
		}
		log.Info().Int("count", len(setpoints)).Str("source", opts.Setpoints.Source).Msg("loaded set-points")
	}

	log.Info().Str("device", opts.Device).Msg("initializing device...")
	ch, err := openChannel(opts)
	if err != nil {
		log.Fatal().Str("device", opts.Device).Err(err).Msg("failed to initialize device")
	}

	var influxWriteAPI api.WriteAPI = &util.NopWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, opts.InfluxDB.Token)
		defer client.Close()
		influxWriteAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
		defer influxWriteAPI.Flush()
	}

	registry := prometheus.NewRegistry()
	collector, err := observability.NewCollector(registry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	session, err := fluxvault.NewSession(ch,
		fluxvault.WithLogger(log.Logger),
		fluxvault.WithPace(opts.Pace),
		fluxvault.WithRetryInterval(opts.RetryInterval),
		fluxvault.WithInfluxDB(influxWriteAPI),
		fluxvault.WithCollector(collector),
		fluxvault.WithReporter(fluxvault.NewLogReporter(log.Logger)))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session")
	}

	var vizServer *viz.Server
	if opts.VizServer.Port > 0 {
		vizServer = newVizServer(opts, session, collector)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	eg.Go(func() error {
		defer cancel()
		if opts.Mode == config.ModeReceive {
			return session.RunReceive(ctx)
		}
		return session.RunBatch(ctx, setpoints)
	})

	if vizServer != nil {
		eg.Go(func() error {
			return vizServer.Run(ctx)
		})
	}

	err = eg.Wait()

	for _, tag := range frame.Tags {
		st := session.Stats()[tag]
		log.Info().
			Str("tag", tag.String()).
			Int("count", st.Count).
			Float64("mean", st.Mean).
			Float64("stddev", st.StdDev).
			Float64("rms", st.RMS).
			Float64("max_abs", st.MaxAbs).
			Msg("echo error")
	}

	if err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("exited program")
	}
}

func loadSetpoints(opts config.Config) ([]fluxvault.Triple, error) {
	sp := opts.Setpoints
	switch sp.Source {
	case config.SourceConstant:
		return setpoint.Constant(setpoint.DemoTriple, sp.Count), nil
	case config.SourceCSV:
		return setpoint.LoadCSVFile(sp.CSVPath)
	case config.SourceOrbit:
		axes, err := setpoint.ParseFrame(sp.Frame)
		if err != nil {
			return nil, err
		}
		orbit := setpoint.Orbit{
			Frame: axes,
			Start: sp.Start,
			Stop:  sp.Stop,
			Step:  sp.Step,
		}
		switch {
		case sp.Elements != nil:
			orbit.Elements = &setpoint.Elements{
				SemiMajorAxisKm: sp.Elements.SemiMajorAxisKm,
				Eccentricity:    sp.Elements.Eccentricity,
				InclinationDeg:  sp.Elements.InclinationDeg,
				RAANDeg:         sp.Elements.RAANDeg,
				ArgPerigeeDeg:   sp.Elements.ArgPerigeeDeg,
				TrueAnomalyDeg:  sp.Elements.TrueAnomalyDeg,
			}
		case len(sp.TLE) == 2:
			orbit.Line1, orbit.Line2 = sp.TLE[0], sp.TLE[1]
		default:
			return nil, fmt.Errorf("orbit source needs two tle lines or elements, got %d lines", len(sp.TLE))
		}
		return orbit.Generate()
	default:
		return nil, fmt.Errorf("unknown setpoint source %q", sp.Source)
	}
}

func openChannel(opts config.Config) (device.Channel, error) {
	var (
		ch  device.Channel
		err error
	)
	switch opts.Device {
	case config.DeviceFile:
		ch, err = file.NewFileDevice(opts.PlaybackLocation, fileByteReadSize, fileReadDelay)
	case config.DeviceLoopback:
		peer := loopback.Echo
		if opts.Loopback.Offset != 0 {
			peer = loopback.Offset(opts.Loopback.Offset)
		}
		ch = loopback.NewLoopbackDevice(peer, opts.Loopback.ReadTimeout)
	default:
		ch, err = serial.NewSerialDevice(serial.Config{
			Port:        opts.Serial.Port,
			Baud:        opts.Serial.Baud,
			ReadTimeout: opts.Serial.ReadTimeout,
		})
	}
	if err != nil {
		return nil, err
	}

	if opts.RecordLocation != "" && opts.Device != config.DeviceFile {
		rec, err := record.NewRecordingDevice(ch, opts.RecordLocation)
		if err != nil {
			ch.Close()
			return nil, err
		}
		ch = rec
	}
	return ch, nil
}

func newVizServer(opts config.Config, session *fluxvault.Session, collector *observability.Collector) *viz.Server {
	s := viz.NewServer(opts.VizServer.Port, opts.VizServer.UpdateInterval)

	sampleRate := 1.0
	if opts.Pace > 0 {
		sampleRate = 1 / opts.Pace.Seconds()
	}

	for _, tag := range frame.Tags {
		series := viz.NewSeriesPlotter(tag.String(), tag, session.Sent(), session.Series(), opts.VizServer.HistoryLength)
		series.SetPlotType(viz.PlotTypeLines)
		series.AddPlotOption(func(p *plot.Plot) {
			p.Legend.Top = true
		})
		s.Register("series", series)

		spectrum := viz.NewSpectrumPlotter(tag.String()+" error", tag, session.Deltas(), opts.VizServer.HistoryLength, sampleRate)
		spectrum.AddPlotOption(func(p *plot.Plot) {
			p.X.Min = 0
			p.X.Max = sampleRate / 2
		})
		s.Register("error", spectrum)
	}

	s.SetMetricsHandler(collector.Handler())
	s.HandleJSON("series", func() interface{} {
		return map[string]map[string][]float32{
			"sent":     session.Sent().SnapshotAll(),
			"received": session.Series().SnapshotAll(),
		}
	})
	s.HandleJSON("stats", func() interface{} {
		out := make(map[string]fluxvault.ErrorStats, frame.NumTags)
		for tag, st := range session.Stats() {
			out[tag.String()] = st
		}
		return out
	})
	return s
}
