package particles

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// AppendLandmark stores one position per particle in the next free landmark slot.
// positions[i] becomes particle i's estimate of the new landmark.
func (s *Set) AppendLandmark(positions []r2.Point) error {
	if err := s.checkCapacity(); err != nil {
		return err
	}
	if err := s.checkPositions(positions); err != nil {
		return err
	}
	s.writePositions(s.observed, positions)
	s.observed++
	return nil
}

// AppendCovariance assigns a covariance to the oldest landmark slot that does not have one yet.
// covs is either a single matrix shared by every particle or one matrix per particle.
//
// Landmarks and covariances share one slot counter: a covariance can only follow a landmark, and a
// landmark appended without one reads back as the zero matrix until it is assigned.
func (s *Set) AppendCovariance(covs ...Covariance) error {
	slot, ok := s.pendingCovarianceSlot()
	if !ok {
		if s.observed >= s.maxLandmarks {
			return errors.Wrapf(ErrCapacityExceeded, "all %d landmark slots already have a covariance", s.maxLandmarks)
		}
		return errors.Wrapf(ErrNoPendingLandmark, "%d landmarks observed, all with covariances", s.observed)
	}
	perParticle, err := s.broadcast(covs)
	if err != nil {
		return err
	}
	s.writeCovariances(slot, perParticle)
	return nil
}

// AppendObservation stores a landmark position and its covariance for every particle in one new slot.
// Nothing is written unless both inputs are valid.
func (s *Set) AppendObservation(positions []r2.Point, covs ...Covariance) error {
	if err := s.checkCapacity(); err != nil {
		return err
	}
	if err := s.checkPositions(positions); err != nil {
		return err
	}
	perParticle, err := s.broadcast(covs)
	if err != nil {
		return err
	}
	slot := s.observed
	s.writePositions(slot, positions)
	s.writeCovariances(slot, perParticle)
	s.observed++
	return nil
}

// UpdateLandmark overwrites every particle's estimate for an already observed slot.
func (s *Set) UpdateLandmark(slot int, positions []r2.Point) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	if err := s.checkPositions(positions); err != nil {
		return err
	}
	s.writePositions(slot, positions)
	return nil
}

// UpdateCovariance overwrites the covariance of an already observed slot.
func (s *Set) UpdateCovariance(slot int, covs ...Covariance) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	perParticle, err := s.broadcast(covs)
	if err != nil {
		return err
	}
	s.writeCovariances(slot, perParticle)
	return nil
}

// LandmarkHypotheses returns every particle's estimate of one landmark, in particle order.
func (s *Set) LandmarkHypotheses(slot int) ([]r2.Point, error) {
	if err := s.checkSlot(slot); err != nil {
		return nil, err
	}
	out := make([]r2.Point, s.count)
	for i := range out {
		out[i] = s.landmarks[s.offset(i, slot)]
	}
	return out, nil
}

// LandmarkCovariances returns every particle's covariance for one landmark, in particle order.
func (s *Set) LandmarkCovariances(slot int) ([]Covariance, error) {
	if err := s.checkSlot(slot); err != nil {
		return nil, err
	}
	out := make([]Covariance, s.count)
	for i := range out {
		out[i] = s.covariances[s.offset(i, slot)]
	}
	return out, nil
}

// CovarianceEigen decomposes every stored covariance. The result is indexed [particle][slot] and
// covers exactly ObservedLandmarks slots.
func (s *Set) CovarianceEigen() ([][]Eigen, error) {
	out := make([][]Eigen, s.count)
	for i := range out {
		out[i] = make([]Eigen, s.observed)
		for slot := 0; slot < s.observed; slot++ {
			e, err := s.covariances[s.offset(i, slot)].Eigen()
			if err != nil {
				return nil, errors.Wrapf(err, "particle %d landmark %d", i, slot)
			}
			out[i][slot] = e
		}
	}
	return out, nil
}

// UncertaintyEllipses returns each particle's confidence ellipse for one landmark. chi2 selects the
// confidence level; Chi2Confidence95 gives the 95% ellipse.
func (s *Set) UncertaintyEllipses(slot int, chi2 float64) ([]Ellipse, error) {
	if err := s.checkSlot(slot); err != nil {
		return nil, err
	}
	if chi2 <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "chi-squared scale must be positive, got %v", chi2)
	}
	out := make([]Ellipse, s.count)
	for i := range out {
		idx := s.offset(i, slot)
		e, err := s.covariances[idx].Eigen()
		if err != nil {
			return nil, errors.Wrapf(err, "particle %d landmark %d", i, slot)
		}
		out[i] = EllipseFrom(s.landmarks[idx], e, chi2)
	}
	return out, nil
}

func (s *Set) checkCapacity() error {
	if s.observed >= s.maxLandmarks {
		return errors.Wrapf(ErrCapacityExceeded, "all %d landmark slots are in use", s.maxLandmarks)
	}
	return nil
}

func (s *Set) checkSlot(slot int) error {
	if slot < 0 || slot >= s.observed {
		return errors.Wrapf(ErrSlotOutOfRange, "slot %d with %d landmarks observed", slot, s.observed)
	}
	return nil
}

func (s *Set) checkPositions(positions []r2.Point) error {
	if len(positions) != s.count {
		return errors.Wrapf(ErrShapeMismatch, "got %d landmark positions for %d particles", len(positions), s.count)
	}
	return nil
}

// broadcast validates covs and expands a single shared matrix to one per particle.
func (s *Set) broadcast(covs []Covariance) ([]Covariance, error) {
	switch len(covs) {
	case 1, s.count:
	default:
		return nil, errors.Wrapf(ErrShapeMismatch, "got %d covariances for %d particles, want 1 or %d", len(covs), s.count, s.count)
	}
	for _, c := range covs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	out := make([]Covariance, s.count)
	if len(covs) == 1 {
		for i := range out {
			out[i] = covs[0]
		}
		return out, nil
	}
	copy(out, covs)
	return out, nil
}

func (s *Set) pendingCovarianceSlot() (int, bool) {
	for slot := 0; slot < s.observed; slot++ {
		if !s.hasCovariance[slot] {
			return slot, true
		}
	}
	return 0, false
}

func (s *Set) writePositions(slot int, positions []r2.Point) {
	for i, p := range positions {
		s.landmarks[s.offset(i, slot)] = p
	}
}

func (s *Set) writeCovariances(slot int, covs []Covariance) {
	for i, c := range covs {
		s.covariances[s.offset(i, slot)] = c
	}
	s.hasCovariance[slot] = true
}
