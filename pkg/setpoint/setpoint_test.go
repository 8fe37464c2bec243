package setpoint

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/norasector/fluxvault/pkg/fluxvault"
)

// ISS sample TLE.
const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func TestConstant(t *testing.T) {
	got := Constant(DemoTriple, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	for _, tr := range got {
		if tr != DemoTriple {
			t.Fatalf("triple = %+v", tr)
		}
	}
	if Constant(DemoTriple, 0) != nil {
		t.Fatalf("expected nil for n=0")
	}
}

func TestLoadCSV(t *testing.T) {
	in := "Time,Mag X,Mag Y,Mag Z\n" +
		"1 Jan 2023 12:00:00.000,0.1,-0.2,0.3\n" +
		"1 Jan 2023 12:01:00.000, 0.15, -0.25, 0.35\n"
	got, err := LoadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	want := []fluxvault.Triple{{X: 0.1, Y: -0.2, Z: 0.3}, {X: 0.15, Y: -0.25, Z: 0.35}}
	if len(got) != len(want) {
		t.Fatalf("rows = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadCSVColumnOrder(t *testing.T) {
	in := "mag z,MAG Y,Mag X\n3,2,1\n"
	got, err := LoadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(got) != 1 || got[0] != (fluxvault.Triple{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "missing header"},
		{"missing column", "Time,Mag X,Mag Y\n1,2,3\n", `missing column "mag z"`},
		{"bad value", "Mag X,Mag Y,Mag Z\n1,abc,3\n", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadCSV() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.csv")
	if err := os.WriteFile(path, []byte("Mag X,Mag Y,Mag Z\n1,2,3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadCSVFile(path)
	if err != nil {
		t.Fatalf("LoadCSVFile: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows = %d", len(got))
	}
}

func TestDipoleField(t *testing.T) {
	const eps = 1e-12
	bx, by, bz := dipoleField(earthRadiusKm, 0, 0)
	if math.Abs(bx) > eps || math.Abs(by) > eps || math.Abs(bz-dipoleB0) > eps {
		t.Fatalf("equator field = (%v, %v, %v), want (0, 0, %v)", bx, by, bz, dipoleB0)
	}
	bx, by, bz = dipoleField(0, 0, earthRadiusKm)
	if math.Abs(bx) > eps || math.Abs(by) > eps || math.Abs(bz+2*dipoleB0) > eps {
		t.Fatalf("north pole field = (%v, %v, %v), want (0, 0, %v)", bx, by, bz, -2*dipoleB0)
	}
	_, _, bz = dipoleField(0, 0, 2*earthRadiusKm)
	if math.Abs(bz+2*dipoleB0/8) > eps {
		t.Fatalf("field does not fall off with r^3: %v", bz)
	}
}

// Exact values belong to go-satellite; check count, variation and a plausible
// magnitude for a low Earth orbit.
func TestOrbitGenerate(t *testing.T) {
	start := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	o := Orbit{Line1: issLine1, Line2: issLine2, Start: start, Stop: start.Add(10 * time.Minute)}

	got, err := o.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 11 {
		t.Fatalf("points = %d, want 11", len(got))
	}
	if got[0] == got[len(got)-1] {
		t.Fatalf("field did not change along the orbit: %+v", got[0])
	}
	for i, tr := range got {
		mag := math.Sqrt(float64(tr.X*tr.X + tr.Y*tr.Y + tr.Z*tr.Z))
		if mag < 0.2 || mag > 0.55 {
			t.Fatalf("point %d magnitude %v Gauss out of range", i, mag)
		}
	}
}

func TestOrbitValidation(t *testing.T) {
	start := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	if _, err := (Orbit{Line1: issLine1, Start: start, Stop: start.Add(time.Hour)}).Generate(); err == nil {
		t.Fatalf("expected error for missing TLE line")
	}
	if _, err := (Orbit{Line1: issLine1, Line2: issLine2, Start: start, Stop: start}).Generate(); err == nil {
		t.Fatalf("expected error for empty window")
	}
}

func TestElementsTLE(t *testing.T) {
	epoch := time.Date(2021, 10, 2, 14, 11, 0, 0, time.UTC)
	el := Elements{
		SemiMajorAxisKm: 7000,
		Eccentricity:    0.001,
		InclinationDeg:  10,
		RAANDeg:         -30,
		ArgPerigeeDeg:   400,
		TrueAnomalyDeg:  0,
	}
	line1, line2, err := el.TLE(epoch)
	if err != nil {
		t.Fatalf("TLE: %v", err)
	}
	for _, l := range []string{line1, line2} {
		if len(l) != 69 {
			t.Fatalf("line %q has length %d", l, len(l))
		}
		if got := tleChecksum(l[:68]); got != l[68:] {
			t.Fatalf("line %q checksum %s", l, got)
		}
	}
	if got := line1[18:32]; got != "21275.59097222" {
		t.Errorf("epoch field = %q", got)
	}
	if got := strings.TrimSpace(line2[17:25]); got != "330.0000" {
		t.Errorf("raan field = %q", got)
	}
	if got := strings.TrimSpace(line2[34:42]); got != "40.0000" {
		t.Errorf("argument of perigee field = %q", got)
	}
	if got := line2[26:33]; got != "0010000" {
		t.Errorf("eccentricity field = %q", got)
	}
}

func TestElementsConversions(t *testing.T) {
	// Mean anomaly equals true anomaly on a circular orbit and at apsides.
	tests := []struct {
		ecc, nu, want float64
	}{
		{0, 123, 123},
		{0.3, 0, 0},
		{0.3, 180, 180},
	}
	for _, tt := range tests {
		got := Elements{Eccentricity: tt.ecc, TrueAnomalyDeg: tt.nu}.MeanAnomalyDeg()
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("MeanAnomalyDeg(e=%v, nu=%v) = %v, want %v", tt.ecc, tt.nu, got, tt.want)
		}
	}
	// Past perigee the mean anomaly lags the true anomaly.
	if m := (Elements{Eccentricity: 0.3, TrueAnomalyDeg: 90}).MeanAnomalyDeg(); m >= 90 {
		t.Errorf("mean anomaly %v should lag 90", m)
	}

	// A geostationary radius turns about once per sidereal day.
	geo := Elements{SemiMajorAxisKm: 42164}
	if n := geo.MeanMotion(); math.Abs(n-1.0027) > 1e-3 {
		t.Errorf("geostationary mean motion = %v", n)
	}
}

func TestElementsValidation(t *testing.T) {
	epoch := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		el   Elements
	}{
		{"hyperbolic", Elements{SemiMajorAxisKm: 7000, Eccentricity: 1}},
		{"negative eccentricity", Elements{SemiMajorAxisKm: 7000, Eccentricity: -0.1}},
		{"below surface", Elements{SemiMajorAxisKm: 6000}},
		{"perigee below surface", Elements{SemiMajorAxisKm: 7000, Eccentricity: 0.2}},
		{"inclination", Elements{SemiMajorAxisKm: 7000, InclinationDeg: 200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := tt.el.TLE(epoch); err == nil {
				t.Errorf("expected error")
			}
		})
	}
	if _, _, err := (Elements{SemiMajorAxisKm: 7000}).TLE(time.Date(2070, 1, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Errorf("expected error for epoch outside the TLE range")
	}
}

func issElements() *Elements {
	return &Elements{
		SemiMajorAxisKm: 6795,
		Eccentricity:    0.0001817,
		InclinationDeg:  51.6459,
		RAANDeg:         115.9059,
		ArgPerigeeDeg:   61.3028,
		TrueAnomalyDeg:  35.92,
	}
}

func TestOrbitFromElements(t *testing.T) {
	start := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	o := Orbit{Elements: issElements(), Start: start, Stop: start.Add(10 * time.Minute)}

	got, err := o.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 11 {
		t.Fatalf("points = %d, want 11", len(got))
	}
	for i, tr := range got {
		mag := math.Sqrt(float64(tr.X*tr.X + tr.Y*tr.Y + tr.Z*tr.Z))
		if mag < 0.2 || mag > 0.55 {
			t.Fatalf("point %d magnitude %v Gauss out of range", i, mag)
		}
	}
}

func TestOrbitBodyFrame(t *testing.T) {
	start := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	base := Orbit{Line1: issLine1, Line2: issLine2, Start: start, Stop: start.Add(30 * time.Minute)}

	ecef, err := base.Generate()
	if err != nil {
		t.Fatalf("ecef: %v", err)
	}
	base.Frame = FrameBody
	body, err := base.Generate()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(body) != len(ecef) {
		t.Fatalf("points = %d and %d", len(body), len(ecef))
	}

	// A rotation keeps the magnitude but not the components.
	changed := false
	for i := range body {
		me := math.Sqrt(float64(ecef[i].X*ecef[i].X + ecef[i].Y*ecef[i].Y + ecef[i].Z*ecef[i].Z))
		mb := math.Sqrt(float64(body[i].X*body[i].X + body[i].Y*body[i].Y + body[i].Z*body[i].Z))
		if math.Abs(me-mb) > 1e-5 {
			t.Fatalf("point %d magnitude %v in body axes, %v in ecef", i, mb, me)
		}
		if body[i] != ecef[i] {
			changed = true
		}
	}
	if !changed {
		t.Fatalf("body frame equals ecef frame")
	}

	base.Frame = "sun"
	if _, err := base.Generate(); err == nil {
		t.Fatalf("expected error for unknown frame")
	}
}

func TestToBodyAxes(t *testing.T) {
	// Spacecraft on the x axis moving along y with the Earth frame aligned
	// to the inertial one: radial out is -z, along track is +x, orbit
	// normal is -y.
	pos := satellite.Vector3{X: 7000}
	vel := satellite.Vector3{Y: 7.5}

	tests := []struct {
		in         satellite.Vector3
		wx, wy, wz float64
	}{
		{satellite.Vector3{X: 1}, 0, 0, -1},
		{satellite.Vector3{Y: 1}, 1, 0, 0},
		{satellite.Vector3{Z: 1}, 0, -1, 0},
	}
	for _, tt := range tests {
		bx, by, bz := toBody(tt.in, pos, vel, 0)
		if math.Abs(bx-tt.wx) > 1e-12 || math.Abs(by-tt.wy) > 1e-12 || math.Abs(bz-tt.wz) > 1e-12 {
			t.Errorf("toBody(%+v) = (%v, %v, %v), want (%v, %v, %v)", tt.in, bx, by, bz, tt.wx, tt.wy, tt.wz)
		}
	}
}

func TestParseFrame(t *testing.T) {
	for in, want := range map[string]Frame{"": FrameECEF, "ECEF": FrameECEF, " body ": FrameBody} {
		got, err := ParseFrame(in)
		if err != nil || got != want {
			t.Errorf("ParseFrame(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFrame("lvlh2"); err == nil {
		t.Errorf("expected error for unknown frame")
	}
}
