package setpoint

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/norasector/fluxvault/pkg/fluxvault"
)

const (
	// Equatorial surface field of the centered dipole, in Gauss.
	dipoleB0 = 0.3
	// Reference Earth radius for the dipole, in km.
	earthRadiusKm = 6371.2

	DefaultOrbitStep = time.Minute
)

// Orbit generates field set-points along an SGP4 propagated orbit. The orbit
// comes from a TLE or, when Elements is set, from classical elements with
// Start as epoch. The field is a centered dipole aligned with the rotation
// axis, in Gauss, expressed in Frame (ECEF by default).
type Orbit struct {
	Line1    string
	Line2    string
	Elements *Elements
	Frame    Frame
	Start    time.Time
	Stop     time.Time
	Step     time.Duration
}

func (o Orbit) Generate() ([]fluxvault.Triple, error) {
	line1, line2 := o.Line1, o.Line2
	if o.Elements != nil {
		var err error
		if line1, line2, err = o.Elements.TLE(o.Start); err != nil {
			return nil, fmt.Errorf("orbit: %w", err)
		}
	}
	if line1 == "" || line2 == "" {
		return nil, fmt.Errorf("orbit: must specify both TLE lines or elements")
	}
	frame := o.Frame
	if frame == "" {
		frame = FrameECEF
	}
	if frame != FrameECEF && frame != FrameBody {
		return nil, fmt.Errorf("orbit: unknown frame %q", frame)
	}
	if !o.Stop.After(o.Start) {
		return nil, fmt.Errorf("orbit: stop %v is not after start %v", o.Stop, o.Start)
	}
	step := o.Step
	if step <= 0 {
		step = DefaultOrbitStep
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)

	var out []fluxvault.Triple
	for ts := o.Start.UTC(); !ts.After(o.Stop); ts = ts.Add(step) {
		year, month, day := ts.Date()
		hour, min, sec := ts.Clock()

		posECI, velECI := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
		if math.IsNaN(posECI.X) {
			return nil, fmt.Errorf("orbit: propagation failed at %v", ts)
		}
		gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, min, sec))
		posECEF := satellite.ECIToECEF(posECI, gmst)

		bx, by, bz := dipoleField(posECEF.X, posECEF.Y, posECEF.Z)
		if frame == FrameBody {
			bx, by, bz = toBody(satellite.Vector3{X: bx, Y: by, Z: bz}, posECI, velECI, gmst)
		}
		out = append(out, fluxvault.Triple{X: float32(bx), Y: float32(by), Z: float32(bz)})
	}
	return out, nil
}

// dipoleField returns the field at an ECEF position given in km.
func dipoleField(x, y, z float64) (bx, by, bz float64) {
	r := math.Sqrt(x*x + y*y + z*z)
	if r == 0 {
		return 0, 0, 0
	}
	ux, uy, uz := x/r, y/r, z/r
	scale := dipoleB0 * math.Pow(earthRadiusKm/r, 3)

	// Dipole moment points to geographic south: m = (0, 0, -1).
	mDotR := -uz
	bx = scale * (3 * mDotR * ux)
	by = scale * (3 * mDotR * uy)
	bz = scale * (3*mDotR*uz + 1)
	return bx, by, bz
}

// toBody rotates an ECEF vector into the local vertical, local horizontal
// axes of a spacecraft at pos with velocity vel (both ECI).
func toBody(b, pos, vel satellite.Vector3, gmst float64) (bx, by, bz float64) {
	// ECEF to ECI is the inverse of satellite.ECIToECEF.
	c, s := math.Cos(gmst), math.Sin(gmst)
	eci := satellite.Vector3{X: b.X*c - b.Y*s, Y: b.X*s + b.Y*c, Z: b.Z}

	z := scale(unit(pos), -1)
	y := scale(unit(cross(pos, vel)), -1)
	x := cross(y, z)
	return dot(eci, x), dot(eci, y), dot(eci, z)
}

func dot(a, b satellite.Vector3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func cross(a, b satellite.Vector3) satellite.Vector3 {
	return satellite.Vector3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func scale(a satellite.Vector3, k float64) satellite.Vector3 {
	return satellite.Vector3{X: a.X * k, Y: a.Y * k, Z: a.Z * k}
}

func unit(a satellite.Vector3) satellite.Vector3 {
	n := math.Sqrt(dot(a, a))
	if n == 0 {
		return a
	}
	return scale(a, 1/n)
}
