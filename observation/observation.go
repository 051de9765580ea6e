// Package observation projects range-bearing landmark readings into the particle frame and
// propagates the sensor noise through the projection.
package observation

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-modules/viam-fastslam/particles"
)

// Reading is a single range-bearing measurement. Bearing is in radians relative to the robot's
// heading.
type Reading struct {
	Range   float64 `json:"range"`
	Bearing float64 `json:"bearing"`
}

// Validate rejects readings with a non-positive range or any non-finite component.
func (r Reading) Validate() error {
	if math.IsNaN(r.Range) || math.IsInf(r.Range, 0) || math.IsNaN(r.Bearing) || math.IsInf(r.Bearing, 0) {
		return errors.Wrapf(particles.ErrInvalidMeasurement, "reading must be finite, got %v", r)
	}
	if r.Range <= 0 {
		return errors.Wrapf(particles.ErrInvalidMeasurement, "range must be positive, got %v", r.Range)
	}
	return nil
}

func (r Reading) String() string {
	return fmt.Sprintf("range: %v, bearing: %v", r.Range, r.Bearing)
}

// Mode selects the frame the propagated covariance is expressed in.
type Mode string

const (
	// SharedCovariance evaluates the Jacobian at the robot-relative bearing and gives every particle
	// the same matrix.
	SharedCovariance Mode = "shared"
	// PerParticleCovariance evaluates the Jacobian at each particle's absolute bearing, giving a
	// world-frame covariance per particle.
	PerParticleCovariance Mode = "per_particle"
)

// ParseMode maps a configuration string to a Mode. The empty string selects PerParticleCovariance.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", PerParticleCovariance:
		return PerParticleCovariance, nil
	case SharedCovariance:
		return SharedCovariance, nil
	default:
		return "", errors.Wrapf(particles.ErrInvalidConfiguration, "unknown covariance mode %q", s)
	}
}

// Project returns, for every particle, the offset of the observed landmark from that particle's
// position: (r cos(φ+θᵢ), r sin(φ+θᵢ)). The set is not modified.
func Project(set *particles.Set, reading Reading) ([]r2.Point, error) {
	if err := reading.Validate(); err != nil {
		return nil, err
	}
	poses := set.Poses()
	offsets := make([]r2.Point, len(poses))
	for i, p := range poses {
		sin, cos := math.Sincos(reading.Bearing + p.Theta)
		offsets[i] = r2.Point{X: reading.Range * cos, Y: reading.Range * sin}
	}
	return offsets, nil
}

// Compose adds each particle's position to its offset, giving absolute landmark positions.
func Compose(set *particles.Set, offsets []r2.Point) ([]r2.Point, error) {
	poses := set.Poses()
	if len(offsets) != len(poses) {
		return nil, errors.Wrapf(particles.ErrShapeMismatch, "got %d offsets for %d particles", len(offsets), len(poses))
	}
	out := make([]r2.Point, len(poses))
	for i, p := range poses {
		out[i] = p.Point().Add(offsets[i])
	}
	return out, nil
}

// Covariance propagates the sensor noise R through the polar-to-Cartesian Jacobian evaluated at
// the reading, returning J R Jᵀ.
func Covariance(reading Reading, noise particles.Covariance) (particles.Covariance, error) {
	if err := reading.Validate(); err != nil {
		return particles.Covariance{}, err
	}
	if err := noise.Validate(); err != nil {
		return particles.Covariance{}, errors.Wrap(err, "sensor noise")
	}
	return propagate(reading.Range, reading.Bearing, noise.Sym())
}

// HeadingCovariances is Covariance with the Jacobian evaluated at each particle's absolute bearing
// φ+θᵢ.
func HeadingCovariances(set *particles.Set, reading Reading, noise particles.Covariance) ([]particles.Covariance, error) {
	if err := reading.Validate(); err != nil {
		return nil, err
	}
	if err := noise.Validate(); err != nil {
		return nil, errors.Wrap(err, "sensor noise")
	}
	r := noise.Sym()
	poses := set.Poses()
	covs := make([]particles.Covariance, len(poses))
	for i, p := range poses {
		c, err := propagate(reading.Range, reading.Bearing+p.Theta, r)
		if err != nil {
			return nil, err
		}
		covs[i] = c
	}
	return covs, nil
}

// Landmark computes absolute landmark positions and covariances for a reading, ready to be passed to
// Set.AppendObservation. In SharedCovariance mode the returned slice holds a single matrix.
func Landmark(
	set *particles.Set,
	reading Reading,
	noise particles.Covariance,
	mode Mode,
) ([]r2.Point, []particles.Covariance, error) {
	offsets, err := Project(set, reading)
	if err != nil {
		return nil, nil, err
	}
	positions, err := Compose(set, offsets)
	if err != nil {
		return nil, nil, err
	}

	switch mode {
	case SharedCovariance:
		c, err := Covariance(reading, noise)
		if err != nil {
			return nil, nil, err
		}
		return positions, []particles.Covariance{c}, nil
	case PerParticleCovariance:
		covs, err := HeadingCovariances(set, reading, noise)
		if err != nil {
			return nil, nil, err
		}
		return positions, covs, nil
	default:
		return nil, nil, errors.Wrapf(particles.ErrInvalidConfiguration, "unknown covariance mode %q", mode)
	}
}

func propagate(rng, bearing float64, noise mat.Symmetric) (particles.Covariance, error) {
	sin, cos := math.Sincos(bearing)
	j := mat.NewDense(2, 2, []float64{
		cos, -rng * sin,
		sin, rng * cos,
	})

	var jr, jrjt mat.Dense
	jr.Mul(j, noise)
	jrjt.Mul(&jr, j.T())

	// rounding leaves the product a few ulps off symmetric
	offDiag := (jrjt.At(0, 1) + jrjt.At(1, 0)) / 2
	return particles.CovarianceFromSym(mat.NewSymDense(2, []float64{
		jrjt.At(0, 0), offDiag,
		offDiag, jrjt.At(1, 1),
	}))
}
