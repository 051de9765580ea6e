package observation

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/viam-modules/viam-fastslam/particles"
)

const tolerance = 1e-9

func newSet(t *testing.T, poses ...particles.Pose) *particles.Set {
	t.Helper()
	s, err := particles.NewSet(len(poses), particles.Pose{}, nil, 2, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.SetPoses(poses), test.ShouldBeNil)
	return s
}

func TestReadingValidate(t *testing.T) {
	for _, bad := range []Reading{
		{Range: 0, Bearing: 0},
		{Range: -1, Bearing: 0},
		{Range: math.NaN(), Bearing: 0},
		{Range: 1, Bearing: math.Inf(-1)},
	} {
		err := bad.Validate()
		test.That(t, errors.Is(err, particles.ErrInvalidMeasurement), test.ShouldBeTrue)
	}
	test.That(t, Reading{Range: 0.1, Bearing: -4}.Validate(), test.ShouldBeNil)
}

func TestProject(t *testing.T) {
	t.Run("a bearing of a quarter turn lands on the y axis", func(t *testing.T) {
		s := newSet(t, particles.Pose{})
		offsets, err := Project(s, Reading{Range: 10, Bearing: math.Pi / 2})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, offsets, test.ShouldHaveLength, 1)
		test.That(t, offsets[0].X, test.ShouldAlmostEqual, 0.0, tolerance)
		test.That(t, offsets[0].Y, test.ShouldAlmostEqual, 10.0, tolerance)
	})

	t.Run("adds each particle's heading to the bearing", func(t *testing.T) {
		s := newSet(t, particles.Pose{X: 5}, particles.Pose{Theta: math.Pi}, particles.Pose{Y: 1, Theta: -math.Pi / 2})
		offsets, err := Project(s, Reading{Range: 2})
		test.That(t, err, test.ShouldBeNil)
		want := []r2.Point{{X: 2}, {X: -2}, {Y: -2}}
		for i, o := range offsets {
			test.That(t, o.X, test.ShouldAlmostEqual, want[i].X, tolerance)
			test.That(t, o.Y, test.ShouldAlmostEqual, want[i].Y, tolerance)
		}

		abs, err := Compose(s, offsets)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, abs[0].X, test.ShouldAlmostEqual, 7.0, tolerance)
		test.That(t, abs[2].Y, test.ShouldAlmostEqual, -1.0, tolerance)
	})

	t.Run("rejects invalid readings and mismatched offsets", func(t *testing.T) {
		s := newSet(t, particles.Pose{}, particles.Pose{})
		_, err := Project(s, Reading{Range: 0})
		test.That(t, errors.Is(err, particles.ErrInvalidMeasurement), test.ShouldBeTrue)
		_, err = Compose(s, []r2.Point{{}})
		test.That(t, errors.Is(err, particles.ErrShapeMismatch), test.ShouldBeTrue)
	})
}

func TestCovariance(t *testing.T) {
	t.Run("unit range straight ahead leaves identity noise unchanged", func(t *testing.T) {
		c, err := Covariance(Reading{Range: 1}, particles.Identity())
		test.That(t, err, test.ShouldBeNil)
		for row := 0; row < 2; row++ {
			for col := 0; col < 2; col++ {
				test.That(t, c[row][col], test.ShouldAlmostEqual, particles.Identity()[row][col], tolerance)
			}
		}
	})

	t.Run("bearing noise scales with range squared across the line of sight", func(t *testing.T) {
		c, err := Covariance(Reading{Range: 10}, particles.Diagonal(0.5, 0.01))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c[0][0], test.ShouldAlmostEqual, 0.5, tolerance)
		test.That(t, c[1][1], test.ShouldAlmostEqual, 1.0, tolerance)
		test.That(t, c[0][1], test.ShouldAlmostEqual, 0.0, tolerance)
	})

	t.Run("is symmetric and positive semi-definite", func(t *testing.T) {
		c, err := Covariance(Reading{Range: 3.7, Bearing: 0.9}, particles.Covariance{{0.2, 0.05}, {0.05, 0.1}})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c[0][1], test.ShouldEqual, c[1][0])
		test.That(t, c.Validate(), test.ShouldBeNil)
	})

	t.Run("singular sensor noise propagates to an acceptable covariance at long range", func(t *testing.T) {
		noise := particles.Covariance{{0.5, math.Sqrt(0.1)}, {math.Sqrt(0.1), 0.2}}
		for i := 0; i < 200; i++ {
			reading := Reading{Range: 1e4, Bearing: 2 * math.Pi * float64(i) / 200}
			c, err := Covariance(reading, noise)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, c.Validate(), test.ShouldBeNil)

			s := newSet(t, particles.Pose{X: 1, Theta: 0.3})
			positions, covs, err := Landmark(s, reading, noise, SharedCovariance)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, s.AppendObservation(positions, covs...), test.ShouldBeNil)
		}
	})

	t.Run("rejects noise that is not a covariance", func(t *testing.T) {
		_, err := Covariance(Reading{Range: 1}, particles.Covariance{{1, 2}, {2, 1}})
		test.That(t, errors.Is(err, particles.ErrInvalidMeasurement), test.ShouldBeTrue)
		_, err = Covariance(Reading{Range: 1}, particles.Covariance{{1, 0.1}, {0, 1}})
		test.That(t, errors.Is(err, particles.ErrInvalidMeasurement), test.ShouldBeTrue)
	})
}

func TestHeadingCovariances(t *testing.T) {
	s := newSet(t, particles.Pose{}, particles.Pose{Theta: math.Pi / 2})
	noise := particles.Diagonal(0.5, 0.01)

	covs, err := HeadingCovariances(s, Reading{Range: 10}, noise)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, covs, test.ShouldHaveLength, 2)

	shared, err := Covariance(Reading{Range: 10}, noise)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, covs[0][0][0], test.ShouldAlmostEqual, shared[0][0], tolerance)

	// rotated a quarter turn, range noise now lies along y
	test.That(t, covs[1][0][0], test.ShouldAlmostEqual, 1.0, tolerance)
	test.That(t, covs[1][1][1], test.ShouldAlmostEqual, 0.5, tolerance)
}

func TestLandmark(t *testing.T) {
	s := newSet(t, particles.Pose{X: 1}, particles.Pose{X: 2, Theta: math.Pi})
	reading := Reading{Range: 1}

	t.Run("shared mode returns a single broadcast covariance", func(t *testing.T) {
		positions, covs, err := Landmark(s, reading, particles.Identity(), SharedCovariance)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, positions[0].X, test.ShouldAlmostEqual, 2.0, tolerance)
		test.That(t, positions[1].X, test.ShouldAlmostEqual, 1.0, tolerance)
		test.That(t, covs, test.ShouldHaveLength, 1)
		test.That(t, s.AppendObservation(positions, covs...), test.ShouldBeNil)
	})

	t.Run("per particle mode returns one covariance per particle", func(t *testing.T) {
		positions, covs, err := Landmark(s, reading, particles.Diagonal(1, 2), PerParticleCovariance)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, covs, test.ShouldHaveLength, 2)
		test.That(t, s.AppendObservation(positions, covs...), test.ShouldBeNil)
		test.That(t, s.ObservedLandmarks(), test.ShouldEqual, 2)
	})

	t.Run("rejects unknown modes", func(t *testing.T) {
		_, _, err := Landmark(s, reading, particles.Identity(), Mode("bogus"))
		test.That(t, errors.Is(err, particles.ErrInvalidConfiguration), test.ShouldBeTrue)

		_, err = ParseMode("bogus")
		test.That(t, errors.Is(err, particles.ErrInvalidConfiguration), test.ShouldBeTrue)
		m, err := ParseMode("")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m, test.ShouldEqual, PerParticleCovariance)
	})
}
