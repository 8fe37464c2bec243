package setpoint

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// WGS72 constants, matching the SGP4 gravity model used for propagation.
	muKm3PerS2        = 398600.8
	earthEquatorialKm = 6378.135
)

// Elements is a classical orbit description: semi-major axis in km,
// eccentricity and angles in degrees.
type Elements struct {
	SemiMajorAxisKm float64
	Eccentricity    float64
	InclinationDeg  float64
	RAANDeg         float64
	ArgPerigeeDeg   float64
	TrueAnomalyDeg  float64
}

func (e Elements) Validate() error {
	if e.Eccentricity < 0 || e.Eccentricity >= 1 {
		return fmt.Errorf("eccentricity %v out of range [0, 1)", e.Eccentricity)
	}
	if e.InclinationDeg < 0 || e.InclinationDeg > 180 {
		return fmt.Errorf("inclination %v out of range [0, 180]", e.InclinationDeg)
	}
	if perigee := e.SemiMajorAxisKm * (1 - e.Eccentricity); perigee <= earthEquatorialKm {
		return fmt.Errorf("perigee radius %.1f km is below the Earth surface", perigee)
	}
	return nil
}

// MeanAnomalyDeg converts the true anomaly to a mean anomaly.
func (e Elements) MeanAnomalyDeg() float64 {
	nu := e.TrueAnomalyDeg * math.Pi / 180
	ecc := e.Eccentricity
	ea := 2 * math.Atan2(math.Sqrt(1-ecc)*math.Sin(nu/2), math.Sqrt(1+ecc)*math.Cos(nu/2))
	return normalizeDeg((ea - ecc*math.Sin(ea)) * 180 / math.Pi)
}

// MeanMotion returns the Keplerian mean motion in revolutions per day.
func (e Elements) MeanMotion() float64 {
	a := e.SemiMajorAxisKm
	return math.Sqrt(muKm3PerS2/(a*a*a)) * 86400 / (2 * math.Pi)
}

// TLE renders the elements as a drag-free two line element set with the given
// epoch, so they can be propagated with SGP4. The elements are taken as SGP4
// mean elements.
func (e Elements) TLE(epoch time.Time) (line1, line2 string, err error) {
	if err := e.Validate(); err != nil {
		return "", "", err
	}
	epoch = epoch.UTC().Truncate(time.Second)
	if epoch.Year() < 1957 || epoch.Year() > 2056 {
		return "", "", fmt.Errorf("epoch year %d cannot be written to a TLE", epoch.Year())
	}

	h, m, s := epoch.Clock()
	epochDays := float64(epoch.YearDay()) + float64(h*3600+m*60+s)/86400

	ecc := int(math.Round(e.Eccentricity * 1e7))
	if ecc > 9999999 {
		ecc = 9999999
	}

	line1 = fmt.Sprintf("1 00000U 00000A   %02d%012.8f  .00000000  00000-0  00000-0 0  999",
		epoch.Year()%100, epochDays)
	line2 = fmt.Sprintf("2 00000 %8.4f %8.4f %07d %8.4f %8.4f %11.8f%5d",
		e.InclinationDeg,
		normalizeDeg(e.RAANDeg),
		ecc,
		normalizeDeg(e.ArgPerigeeDeg),
		e.MeanAnomalyDeg(),
		e.MeanMotion(),
		0)
	return line1 + tleChecksum(line1), line2 + tleChecksum(line2), nil
}

func tleChecksum(line string) string {
	sum := 0
	for _, c := range line {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return fmt.Sprint(sum % 10)
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// Frame selects the axes set-points are expressed in.
type Frame string

const (
	// FrameECEF expresses the field in Earth fixed axes.
	FrameECEF Frame = "ecef"
	// FrameBody expresses the field in the axes of a nadir pointing
	// spacecraft: x along track, z towards the Earth centre, y completing
	// the right handed set (local vertical, local horizontal).
	FrameBody Frame = "body"
)

func ParseFrame(s string) (Frame, error) {
	switch f := Frame(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FrameECEF:
		return FrameECEF, nil
	case FrameBody:
		return FrameBody, nil
	default:
		return "", fmt.Errorf("unknown frame %q", s)
	}
}
