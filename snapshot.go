package viamfastslam

import (
	"context"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	viamgrpc "go.viam.com/rdk/grpc"
	"gonum.org/v1/gonum/floats"

	"github.com/viam-modules/viam-fastslam/motion"
	"github.com/viam-modules/viam-fastslam/observation"
	"github.com/viam-modules/viam-fastslam/particles"
)

// Snapshot is a consistent copy of the particle set taken between steps.
type Snapshot struct {
	Poses       []particles.Pose
	Weights     []float64
	WeightSum   float64
	MeanPose    particles.Pose
	StdDev      particles.Pose
	BoundingBox r2.Rect

	ObservedLandmarks int
	// Landmarks and Ellipses are indexed [slot][particle].
	Landmarks [][]r2.Point
	Ellipses  [][]particles.Ellipse

	LatestReadingTime time.Time
}

// ParticleSnapshot is a copy of one particle's pose, weight and landmark map.
type ParticleSnapshot struct {
	Index       int
	Pose        particles.Pose
	Weight      float64
	Landmarks   []r2.Point
	Covariances []particles.Covariance
}

// Snapshot copies the particle set along with its summaries and 95% landmark uncertainty ellipses.
func (slamSvc *FastSLAMService) Snapshot(ctx context.Context) (Snapshot, error) {
	_, span := trace.StartSpan(ctx, "viamfastslam::FastSLAMService::Snapshot")
	defer span.End()

	slamSvc.mu.RLock()
	defer slamSvc.mu.RUnlock()
	if slamSvc.closed {
		slamSvc.logger.Warn("Snapshot called after closed")
		return Snapshot{}, ErrClosed
	}

	set := slamSvc.set
	weights := set.Weights()
	snap := Snapshot{
		Poses:             set.Poses(),
		Weights:           weights,
		WeightSum:         floats.Sum(weights),
		MeanPose:          set.MeanPose(),
		StdDev:            set.StdDev(),
		BoundingBox:       set.BoundingBox(),
		ObservedLandmarks: set.ObservedLandmarks(),
	}
	for slot := 0; slot < snap.ObservedLandmarks; slot++ {
		hyps, err := set.LandmarkHypotheses(slot)
		if err != nil {
			return Snapshot{}, err
		}
		ellipses, err := set.UncertaintyEllipses(slot, particles.Chi2Confidence95)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Landmarks = append(snap.Landmarks, hyps)
		snap.Ellipses = append(snap.Ellipses, ellipses)
	}
	if slamSvc.sensorProcess != nil {
		snap.LatestReadingTime = slamSvc.sensorProcess.LatestReadingTime()
	}
	return snap, nil
}

// Particle copies the particle at index i.
func (slamSvc *FastSLAMService) Particle(ctx context.Context, i int) (ParticleSnapshot, error) {
	_, span := trace.StartSpan(ctx, "viamfastslam::FastSLAMService::Particle")
	defer span.End()

	slamSvc.mu.RLock()
	defer slamSvc.mu.RUnlock()
	if slamSvc.closed {
		slamSvc.logger.Warn("Particle called after closed")
		return ParticleSnapshot{}, ErrClosed
	}

	p, err := slamSvc.set.Particle(i)
	if err != nil {
		return ParticleSnapshot{}, err
	}
	return ParticleSnapshot{
		Index:       p.Index(),
		Pose:        p.Pose(),
		Weight:      p.Weight(),
		Landmarks:   p.Landmarks(),
		Covariances: p.Covariances(),
	}, nil
}

// DoCommand receives arbitrary commands. Supported keys:
//
//	"predict":  {"linear": v, "angular": w, "dt": seconds}
//	"observe":  {"range": r, "bearing": phi}
//	"snapshot": any value, returns summary statistics
//	"job_done": any value, reports whether a replay control sensor has been exhausted
func (slamSvc *FastSLAMService) DoCommand(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error) {
	if _, ok := req["job_done"]; ok {
		return map[string]interface{}{"job_done": slamSvc.jobDone.Load()}, nil
	}

	if args, ok := req["predict"]; ok {
		params, err := commandParams(args, "linear", "angular", "dt")
		if err != nil {
			return nil, errors.Wrap(err, "predict")
		}
		control := motion.Control{Linear: params["linear"], Angular: params["angular"]}
		if err := slamSvc.Predict(ctx, control, params["dt"]); err != nil {
			return nil, err
		}
		return map[string]interface{}{"predict": true}, nil
	}

	if args, ok := req["observe"]; ok {
		params, err := commandParams(args, "range", "bearing")
		if err != nil {
			return nil, errors.Wrap(err, "observe")
		}
		slot, err := slamSvc.Observe(ctx, observation.Reading{Range: params["range"], Bearing: params["bearing"]})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"slot": slot}, nil
	}

	if _, ok := req["snapshot"]; ok {
		snap, err := slamSvc.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"observed_landmarks": snap.ObservedLandmarks,
			"weight_sum":         snap.WeightSum,
			"mean_pose":          poseMap(snap.MeanPose),
			"std_dev":            poseMap(snap.StdDev),
			"bounding_box": map[string]interface{}{
				"min": map[string]interface{}{"x": snap.BoundingBox.Lo().X, "y": snap.BoundingBox.Lo().Y},
				"max": map[string]interface{}{"x": snap.BoundingBox.Hi().X, "y": snap.BoundingBox.Hi().Y},
			},
		}, nil
	}

	return nil, viamgrpc.UnimplementedError
}

func commandParams(args interface{}, keys ...string) (map[string]float64, error) {
	m, ok := args.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("expected an object, got %T", args)
	}
	out := make(map[string]float64, len(keys))
	for _, key := range keys {
		v, ok := m[key].(float64)
		if !ok {
			return nil, errors.Errorf("%q must be a number, got %v", key, m[key])
		}
		out[key] = v
	}
	return out, nil
}

func poseMap(p particles.Pose) map[string]interface{} {
	return map[string]interface{}{"x": p.X, "y": p.Y, "theta": p.Theta}
}
