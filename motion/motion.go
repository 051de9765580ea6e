// Package motion implements the sampled kinematic prediction step of the particle filter.
package motion

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/viam-modules/viam-fastslam/particles"
)

// MinAngularVelocity is the smallest angular velocity magnitude used in the arc integration. Smaller
// sampled values are replaced by it, keeping their sign, so straight-line motion does not divide by
// zero.
const MinAngularVelocity = 1e-6

// axleAngle rotates the track width offset relative to the heading.
const axleAngle = math.Pi / 4

// Alphas scale the process noise. With v and w the commanded linear and angular velocities:
//
//	linear noise std dev   = sqrt(a[0]v² + a[1]w²)
//	angular noise std dev  = sqrt(a[2]v² + a[3]w²)
//	heading drift std dev  = sqrt(a[4]v² + a[5]w²)
type Alphas [6]float64

// Control is a commanded velocity pair. Linear is in distance units per second, Angular in radians
// per second.
type Control struct {
	Linear  float64
	Angular float64
}

// Model is an Ackermann-style velocity motion model. A zero track width gives the plain unicycle
// model.
type Model struct {
	alphas     Alphas
	trackWidth float64
}

// NewModel validates the noise coefficients and track width once so that Predict never has to.
func NewModel(alphas Alphas, trackWidth float64) (*Model, error) {
	var err error
	for i, a := range alphas {
		if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			err = multierr.Append(err, errors.Errorf("alpha %d must be finite and non-negative, got %v", i+1, a))
		}
	}
	if math.IsNaN(trackWidth) || math.IsInf(trackWidth, 0) {
		err = multierr.Append(err, errors.Errorf("track width must be finite, got %v", trackWidth))
	}
	if err != nil {
		return nil, errors.Wrap(particles.ErrInvalidConfiguration, err.Error())
	}
	return &Model{alphas: alphas, trackWidth: trackWidth}, nil
}

// Alphas returns the model's noise coefficients.
func (m *Model) Alphas() Alphas {
	return m.alphas
}

// TrackWidth returns the model's fixed axle offset.
func (m *Model) TrackWidth() float64 {
	return m.trackWidth
}

// Predict advances every particle by dt seconds under control and returns the new poses. The set is
// only read; callers replace its poses with the result. Noise for each particle is drawn
// independently from src, or from the process-wide source when src is nil.
func (m *Model) Predict(set *particles.Set, control Control, dt float64, src rand.Source) ([]particles.Pose, error) {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, errors.Wrapf(particles.ErrInvalidConfiguration, "timestep must be finite and non-negative, got %v", dt)
	}

	v2 := control.Linear * control.Linear
	w2 := control.Angular * control.Angular
	linearNoise := distuv.Normal{Sigma: math.Sqrt(m.alphas[0]*v2 + m.alphas[1]*w2), Src: src}
	angularNoise := distuv.Normal{Sigma: math.Sqrt(m.alphas[2]*v2 + m.alphas[3]*w2), Src: src}
	driftNoise := distuv.Normal{Sigma: math.Sqrt(m.alphas[4]*v2 + m.alphas[5]*w2), Src: src}

	poses := set.Poses()
	out := make([]particles.Pose, len(poses))
	for i, p := range poses {
		v := control.Linear + linearNoise.Rand()
		w := control.Angular + angularNoise.Rand()
		gamma := driftNoise.Rand()
		out[i] = m.step(p, v, w, gamma, dt)
	}
	return out, nil
}

// step integrates one particle along its arc in closed form.
func (m *Model) step(p particles.Pose, v, w, gamma, dt float64) particles.Pose {
	arcW := w
	if math.Abs(arcW) < MinAngularVelocity {
		arcW = math.Copysign(MinAngularVelocity, w)
	}
	radius := v / arcW
	sinT, cosT := math.Sincos(p.Theta)
	sinNext, cosNext := math.Sincos(p.Theta + arcW*dt)
	offX := m.trackWidth * math.Cos(p.Theta-axleAngle)
	offY := m.trackWidth * math.Sin(p.Theta-axleAngle)

	return particles.Pose{
		X:     p.X - radius*sinT + radius*sinNext + offX,
		Y:     p.Y + radius*cosT - radius*cosNext + offY,
		Theta: p.Theta + w*dt + gamma*dt,
	}
}
