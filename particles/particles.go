// Package particles holds the particle population of a FastSLAM estimator: one pose, one importance
// weight and one landmark map per particle, stored as parallel arrays with a fixed landmark capacity.
//
// A Set is not safe for concurrent use. Callers that read from another goroutine while a step is
// being applied must serialize access themselves (see fastslam.Service).
package particles

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Pose is a planar position and heading. Theta is in radians and is never wrapped.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Point returns the position part of the pose.
func (p Pose) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

func (p Pose) finite() bool {
	for _, v := range []float64{p.X, p.Y, p.Theta} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Set is a fixed-size population of weighted pose hypotheses, each with its own landmark map.
//
// Landmark storage is allocated for maxLandmarks slots up front. Only the first ObservedLandmarks
// slots are ever read; appending past capacity fails with ErrCapacityExceeded.
type Set struct {
	count        int
	maxLandmarks int
	observed     int

	poses       []Pose
	weights     []float64
	landmarks   []r2.Point
	covariances []Covariance
	likelihoods []float64
	// hasCovariance marks slots whose covariance has been assigned.
	hasCovariance []bool
}

// NewSet creates count particles at initialPose. When noise is non-nil every axis of every particle is
// perturbed by an independent zero-mean Gaussian with the matching standard deviation, drawn from src.
// A nil src uses the process-wide source.
func NewSet(count int, initialPose Pose, noise *Pose, maxLandmarks int, src rand.Source) (*Set, error) {
	if count <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "number of particles must be positive, got %d", count)
	}
	if maxLandmarks <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "max landmarks must be positive, got %d", maxLandmarks)
	}
	if !initialPose.finite() {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "initial pose %+v is not finite", initialPose)
	}
	if noise != nil && (!noise.finite() || noise.X < 0 || noise.Y < 0 || noise.Theta < 0) {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "initial pose noise %+v must be finite and non-negative", *noise)
	}

	s := &Set{
		count:         count,
		maxLandmarks:  maxLandmarks,
		poses:         make([]Pose, count),
		weights:       make([]float64, count),
		landmarks:     make([]r2.Point, count*maxLandmarks),
		covariances:   make([]Covariance, count*maxLandmarks),
		likelihoods:   make([]float64, count*maxLandmarks),
		hasCovariance: make([]bool, maxLandmarks),
	}
	for i := range s.poses {
		s.poses[i] = initialPose
		s.weights[i] = 1 / float64(count)
	}

	if noise != nil {
		nx := distuv.Normal{Sigma: noise.X, Src: src}
		ny := distuv.Normal{Sigma: noise.Y, Src: src}
		nt := distuv.Normal{Sigma: noise.Theta, Src: src}
		for i := range s.poses {
			s.poses[i].X += nx.Rand()
			s.poses[i].Y += ny.Rand()
			s.poses[i].Theta += nt.Rand()
		}
	}
	return s, nil
}

// Count returns the number of particles.
func (s *Set) Count() int {
	return s.count
}

// MaxLandmarks returns the landmark slot capacity.
func (s *Set) MaxLandmarks() int {
	return s.maxLandmarks
}

// ObservedLandmarks returns how many landmark slots are populated.
func (s *Set) ObservedLandmarks() int {
	return s.observed
}

// PendingCovariances returns how many populated landmark slots have not had a covariance assigned.
func (s *Set) PendingCovariances() int {
	pending := 0
	for slot := 0; slot < s.observed; slot++ {
		if !s.hasCovariance[slot] {
			pending++
		}
	}
	return pending
}

// Poses returns a copy of every particle's pose.
func (s *Set) Poses() []Pose {
	out := make([]Pose, len(s.poses))
	copy(out, s.poses)
	return out
}

// SetPoses replaces every pose at once, typically with the output of a motion update. The backing
// array is swapped rather than written element by element.
func (s *Set) SetPoses(poses []Pose) error {
	if len(poses) != s.count {
		return errors.Wrapf(ErrShapeMismatch, "got %d poses for %d particles", len(poses), s.count)
	}
	next := make([]Pose, len(poses))
	copy(next, poses)
	s.poses = next
	return nil
}

// Weights returns a copy of the importance weights. They start at 1/count; nothing in this package
// renormalizes them afterwards.
func (s *Set) Weights() []float64 {
	out := make([]float64, len(s.weights))
	copy(out, s.weights)
	return out
}

// Particle returns the projection of particle i onto the set.
func (s *Set) Particle(i int) (Particle, error) {
	if i < 0 || i >= s.count {
		return Particle{}, errors.Wrapf(ErrIndexOutOfRange, "particle %d of %d", i, s.count)
	}
	return Particle{set: s, index: i}, nil
}

// Particles returns a projection for every particle, in index order.
func (s *Set) Particles() []Particle {
	out := make([]Particle, s.count)
	for i := range out {
		out[i] = Particle{set: s, index: i}
	}
	return out
}

// MeanPose returns the per-axis arithmetic mean of all poses. Heading is averaged linearly, with no
// wraparound handling.
func (s *Set) MeanPose() Pose {
	return Pose{
		X:     stat.Mean(s.axis(func(p Pose) float64 { return p.X }), nil),
		Y:     stat.Mean(s.axis(func(p Pose) float64 { return p.Y }), nil),
		Theta: stat.Mean(s.axis(func(p Pose) float64 { return p.Theta }), nil),
	}
}

// StdDev returns the per-axis sample standard deviation of all poses. A single particle has no spread.
func (s *Set) StdDev() Pose {
	if s.count < 2 {
		return Pose{}
	}
	return Pose{
		X:     stat.StdDev(s.axis(func(p Pose) float64 { return p.X }), nil),
		Y:     stat.StdDev(s.axis(func(p Pose) float64 { return p.Y }), nil),
		Theta: stat.StdDev(s.axis(func(p Pose) float64 { return p.Theta }), nil),
	}
}

// BoundingBox returns the axis-aligned rectangle enclosing every particle position.
func (s *Set) BoundingBox() r2.Rect {
	points := make([]r2.Point, len(s.poses))
	for i, p := range s.poses {
		points[i] = p.Point()
	}
	return r2.RectFromPoints(points...)
}

func (s *Set) axis(f func(Pose) float64) []float64 {
	out := make([]float64, len(s.poses))
	for i, p := range s.poses {
		out[i] = f(p)
	}
	return out
}

func (s *Set) String() string {
	return fmt.Sprintf("number of particles:\t%d\nspread of particles: %+v\n", s.count, s.StdDev())
}

// offset maps a particle and landmark slot onto the flat landmark arrays.
func (s *Set) offset(particle, slot int) int {
	return particle*s.maxLandmarks + slot
}
