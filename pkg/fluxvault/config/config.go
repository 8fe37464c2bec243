package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	ModeBatch   = "batch"
	ModeReceive = "receive"

	DeviceSerial   = "serial"
	DeviceFile     = "file"
	DeviceLoopback = "loopback"

	SourceConstant = "constant"
	SourceCSV      = "csv"
	SourceOrbit    = "orbit"
)

type Config struct {
	Mode             string        `yaml:"mode"`
	Device           string        `yaml:"device"`
	LogLevel         string        `yaml:"log_level"`
	Pace             time.Duration `yaml:"pace"`
	RetryInterval    time.Duration `yaml:"retry_interval"`
	RecordLocation   string        `yaml:"record_location"`
	PlaybackLocation string        `yaml:"playback_location"`
	Serial           Serial        `yaml:"serial"`
	Loopback         Loopback      `yaml:"loopback"`
	Setpoints        Setpoints     `yaml:"setpoints"`
	VizServer        struct {
		Port           int           `yaml:"port"`
		UpdateInterval time.Duration `yaml:"update_interval"`
		HistoryLength  int           `yaml:"history_length"`
	} `yaml:"viz_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Token        string `yaml:"token"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type Serial struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type Loopback struct {
	Offset      float32       `yaml:"offset"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type Setpoints struct {
	Source  string   `yaml:"source"`
	Count   int      `yaml:"count"`
	CSVPath string   `yaml:"csv_path"`
	TLE     []string `yaml:"tle,flow"`
	// Elements replaces TLE when set; Start is used as epoch.
	Elements *Elements `yaml:"elements"`
	// Frame is "ecef" (default) or "body".
	Frame string        `yaml:"frame"`
	Start time.Time     `yaml:"start"`
	Stop  time.Time     `yaml:"stop"`
	Step  time.Duration `yaml:"step"`
}

type Elements struct {
	SemiMajorAxisKm float64 `yaml:"semi_major_axis_km"`
	Eccentricity    float64 `yaml:"eccentricity"`
	InclinationDeg  float64 `yaml:"inclination_deg"`
	RAANDeg         float64 `yaml:"raan_deg"`
	ArgPerigeeDeg   float64 `yaml:"arg_perigee_deg"`
	TrueAnomalyDeg  float64 `yaml:"true_anomaly_deg"`
}

// Default returns the bench setup: 9600 baud,
// one second read timeout and one second between set-points.
func Default() Config {
	var c Config
	c.Mode = ModeBatch
	c.Device = DeviceSerial
	c.LogLevel = "info"
	c.Pace = time.Second
	c.RetryInterval = time.Second
	c.Serial = Serial{Port: "/dev/ttyUSB0", Baud: 9600, ReadTimeout: time.Second}
	c.Loopback = Loopback{ReadTimeout: 100 * time.Millisecond}
	c.Setpoints = Setpoints{Source: SourceConstant, Count: 10, Step: time.Minute}
	c.VizServer.UpdateInterval = time.Second
	c.VizServer.HistoryLength = 600
	return c
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(contents)
}

func Parse(contents []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return Config{}, err
	}
	if c.PlaybackLocation != "" {
		c.Device = DeviceFile
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeBatch, ModeReceive:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	switch c.Device {
	case DeviceSerial:
		if c.Serial.Port == "" || c.Serial.Baud <= 0 {
			return fmt.Errorf("serial device needs port and baud")
		}
	case DeviceFile:
		if c.PlaybackLocation == "" {
			return fmt.Errorf("file device needs playback_location")
		}
	case DeviceLoopback:
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}
	if c.Pace < 0 {
		return fmt.Errorf("pace must not be negative")
	}
	if c.RetryInterval < 0 {
		return fmt.Errorf("retry_interval must not be negative")
	}
	if c.Mode != ModeBatch {
		return nil
	}
	switch c.Setpoints.Source {
	case SourceConstant:
		if c.Setpoints.Count <= 0 {
			return fmt.Errorf("constant source needs a positive count")
		}
	case SourceCSV:
		if c.Setpoints.CSVPath == "" {
			return fmt.Errorf("csv source needs csv_path")
		}
	case SourceOrbit:
		if c.Setpoints.Elements != nil {
			if c.Setpoints.Elements.SemiMajorAxisKm <= 0 {
				return fmt.Errorf("orbit elements need a semi-major axis")
			}
		} else if len(c.Setpoints.TLE) != 2 || c.Setpoints.TLE[0] == "" || c.Setpoints.TLE[1] == "" {
			return fmt.Errorf("orbit source needs both tle lines or elements")
		}
		switch c.Setpoints.Frame {
		case "", "ecef", "body":
		default:
			return fmt.Errorf("unknown orbit frame %q", c.Setpoints.Frame)
		}
	default:
		return fmt.Errorf("unknown setpoint source %q", c.Setpoints.Source)
	}
	return nil
}
