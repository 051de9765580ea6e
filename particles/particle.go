package particles

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Particle is a read/write view of one index across a Set. It holds no state of its own, so every
// setter writes straight into the Set, and it must not be used after the Set is discarded.
type Particle struct {
	set   *Set
	index int
}

// Index returns the particle's position in its set.
func (p Particle) Index() int {
	return p.index
}

// Pose returns the particle's current pose.
func (p Particle) Pose() Pose {
	return p.set.poses[p.index]
}

// SetPose overwrites the particle's pose.
func (p Particle) SetPose(pose Pose) {
	p.set.poses[p.index] = pose
}

// Weight returns the particle's importance weight.
func (p Particle) Weight() float64 {
	return p.set.weights[p.index]
}

// SetWeight overwrites the particle's importance weight. The set's weights are not renormalized.
func (p Particle) SetWeight(w float64) {
	p.set.weights[p.index] = w
}

// Landmarks returns a copy of the particle's landmark estimates, one per observed slot.
func (p Particle) Landmarks() []r2.Point {
	out := make([]r2.Point, p.set.observed)
	for slot := range out {
		out[slot] = p.set.landmarks[p.set.offset(p.index, slot)]
	}
	return out
}

// Landmark returns the particle's estimate for one observed slot.
func (p Particle) Landmark(slot int) (r2.Point, error) {
	if err := p.set.checkSlot(slot); err != nil {
		return r2.Point{}, err
	}
	return p.set.landmarks[p.set.offset(p.index, slot)], nil
}

// SetLandmark overwrites the particle's estimate for one observed slot.
func (p Particle) SetLandmark(slot int, position r2.Point) error {
	if err := p.set.checkSlot(slot); err != nil {
		return err
	}
	p.set.landmarks[p.set.offset(p.index, slot)] = position
	return nil
}

// Covariances returns a copy of the particle's landmark covariances, one per observed slot.
func (p Particle) Covariances() []Covariance {
	out := make([]Covariance, p.set.observed)
	for slot := range out {
		out[slot] = p.set.covariances[p.set.offset(p.index, slot)]
	}
	return out
}

// Covariance returns the particle's covariance for one observed slot.
func (p Particle) Covariance(slot int) (Covariance, error) {
	if err := p.set.checkSlot(slot); err != nil {
		return Covariance{}, err
	}
	return p.set.covariances[p.set.offset(p.index, slot)], nil
}

// SetCovariance overwrites the particle's covariance for one observed slot. A slot still waiting
// for a covariance counts as assigned afterwards, so AppendCovariance moves on to the next one.
func (p Particle) SetCovariance(slot int, c Covariance) error {
	if err := p.set.checkSlot(slot); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	p.set.covariances[p.set.offset(p.index, slot)] = c
	p.set.hasCovariance[slot] = true
	return nil
}

// LandmarkLikelihood returns the stored observation weight for one observed slot.
func (p Particle) LandmarkLikelihood(slot int) (float64, error) {
	if err := p.set.checkSlot(slot); err != nil {
		return 0, err
	}
	return p.set.likelihoods[p.set.offset(p.index, slot)], nil
}

// SetLandmarkLikelihood stores an observation weight for one observed slot.
func (p Particle) SetLandmarkLikelihood(slot int, likelihood float64) error {
	if err := p.set.checkSlot(slot); err != nil {
		return err
	}
	if likelihood < 0 {
		return errors.Wrapf(ErrInvalidMeasurement, "likelihood must be non-negative, got %v", likelihood)
	}
	p.set.likelihoods[p.set.offset(p.index, slot)] = likelihood
	return nil
}

func (p Particle) String() string {
	return fmt.Sprintf("index: %d importance factor: %v pose: %+v landmarks: %v",
		p.index, p.Weight(), p.Pose(), p.Landmarks())
}
