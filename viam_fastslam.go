// Package viamfastslam implements the prediction and landmark initialization steps of FastSLAM.
// This is an Experimental package.
package viamfastslam

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/spatialmath"
	rdkutils "go.viam.com/rdk/utils"
	"golang.org/x/exp/rand"

	vfConfig "github.com/viam-modules/viam-fastslam/config"
	"github.com/viam-modules/viam-fastslam/motion"
	"github.com/viam-modules/viam-fastslam/observation"
	"github.com/viam-modules/viam-fastslam/particles"
	"github.com/viam-modules/viam-fastslam/sensorprocess"
	s "github.com/viam-modules/viam-fastslam/sensors"
)

// Model is the model name of fastslam.
var (
	Model = resource.NewModel("viam", "slam", "fastslam")
	// ErrClosed denotes that the slam service method was called on a closed slam resource.
	ErrClosed = errors.Errorf("resource (%s) is closed", Model.String())
)

const (
	// DefaultSensorValidationMaxTimeout bounds how long New waits for a first control reading.
	DefaultSensorValidationMaxTimeout = 30 * time.Second
	// DefaultSensorValidationInterval is the wait between control reading attempts during New.
	DefaultSensorValidationInterval = time.Second
)

func init() {
	resource.RegisterService(generic.API, Model, resource.Registration[resource.Resource, *vfConfig.Config]{
		Constructor: func(
			ctx context.Context,
			deps resource.Dependencies,
			c resource.Config,
			logger logging.Logger,
		) (resource.Resource, error) {
			svc, err := New(
				ctx,
				deps,
				c,
				logger,
				DefaultSensorValidationMaxTimeout,
				DefaultSensorValidationInterval,
				nil,
			)
			if err != nil {
				return nil, err
			}
			return svc, nil
		},
	})
}

// FastSLAMService owns one particle set and applies motion and landmark updates to it in order.
// Readers take a consistent copy under a read lock, so a step is never observed half applied.
type FastSLAMService struct {
	resource.Named
	resource.AlwaysRebuild

	mu     sync.RWMutex
	closed bool

	set         *particles.Set
	model       *motion.Model
	sensorNoise particles.Covariance
	mode        observation.Mode
	src         rand.Source

	controlSensor           s.TimedControlSensor
	sensorProcess           *sensorprocess.Config
	cancelSensorProcessFunc func()
	sensorProcessWorkers    sync.WaitGroup
	jobDone                 atomic.Bool

	logger logging.Logger
}

// New returns a new FastSLAM service. When a movement sensor is configured (or overridden for
// testing) a background process feeds its readings to Predict until Close.
func New(
	ctx context.Context,
	deps resource.Dependencies,
	c resource.Config,
	logger logging.Logger,
	sensorValidationMaxTimeout time.Duration,
	sensorValidationInterval time.Duration,
	testTimedControlSensorOverride s.TimedControlSensor,
) (*FastSLAMService, error) {
	ctx, span := trace.StartSpan(ctx, "viamfastslam::FastSLAMService::New")
	defer span.End()

	svcConfig, err := resource.NativeConfig[*vfConfig.Config](c)
	if err != nil {
		return nil, err
	}
	if _, err := svcConfig.Validate(c.Name); err != nil {
		return nil, err
	}

	optionalConfigParams, err := vfConfig.GetOptionalParameters(svcConfig, s.DefaultDataFrequencyHz, logger)
	if err != nil {
		return nil, err
	}

	var src rand.Source
	if optionalConfigParams.Seed != nil {
		src = rand.NewSource(*optionalConfigParams.Seed)
	} else {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}

	set, err := particles.NewSet(
		svcConfig.NumParticles,
		optionalConfigParams.InitialPose,
		optionalConfigParams.InitialPoseNoise,
		svcConfig.MaxLandmarks,
		src,
	)
	if err != nil {
		return nil, err
	}

	model, err := motion.NewModel(optionalConfigParams.MotionNoise, optionalConfigParams.TrackWidth)
	if err != nil {
		return nil, err
	}

	var controlSensor s.TimedControlSensor
	if testTimedControlSensorOverride != nil {
		controlSensor = testTimedControlSensorOverride
	} else if optionalConfigParams.MovementSensorName == "" {
		logger.Info("no movement sensor configured, controls must be supplied through Predict")
	} else if controlSensor, err = s.NewControlSensor(ctx, deps, optionalConfigParams.MovementSensorName,
		optionalConfigParams.MovementSensorDataFrequencyHz, logger); err != nil {
		return nil, err
	}

	cancelSensorProcessCtx, cancelSensorProcessFunc := context.WithCancel(context.Background())

	slamSvc := &FastSLAMService{
		Named:                   c.ResourceName().AsNamed(),
		set:                     set,
		model:                   model,
		sensorNoise:             optionalConfigParams.SensorNoise,
		mode:                    optionalConfigParams.CovarianceMode,
		src:                     src,
		controlSensor:           controlSensor,
		cancelSensorProcessFunc: cancelSensorProcessFunc,
		logger:                  logger,
	}

	defer func() {
		if err != nil {
			logger.Errorw("New() hit error, closing...", "error", err)
			if err := slamSvc.Close(ctx); err != nil {
				logger.Errorw("error closing out after error", "error", err)
			}
		}
	}()

	if controlSensor != nil {
		if err = s.ValidateGetControlData(
			cancelSensorProcessCtx,
			controlSensor,
			sensorValidationMaxTimeout,
			sensorValidationInterval,
			logger,
		); err != nil {
			err = errors.Wrap(err, "failed to get data from movement sensor")
			return nil, err
		}
		initSensorProcess(cancelSensorProcessCtx, slamSvc)
	}

	logger.Infow("fastslam service started", "particles", set.Count(), "max_landmarks", set.MaxLandmarks(),
		"covariance_mode", slamSvc.mode)
	return slamSvc, nil
}

func initSensorProcess(cancelCtx context.Context, slamSvc *FastSLAMService) {
	slamSvc.sensorProcess = &sensorprocess.Config{
		Predictor:     slamSvc,
		ControlSensor: slamSvc.controlSensor,
		Logger:        slamSvc.logger,
		Mutex:         &sync.Mutex{},
	}

	slamSvc.sensorProcessWorkers.Add(1)
	go func() {
		defer slamSvc.sensorProcessWorkers.Done()
		if jobDone := slamSvc.sensorProcess.StartControlSensor(cancelCtx); jobDone {
			slamSvc.jobDone.Store(true)
		}
	}()
}

// Predict advances every particle by dt seconds under control and replaces the set's poses with
// the result.
func (slamSvc *FastSLAMService) Predict(ctx context.Context, control motion.Control, dt float64) error {
	_, span := trace.StartSpan(ctx, "viamfastslam::FastSLAMService::Predict")
	defer span.End()

	slamSvc.mu.Lock()
	defer slamSvc.mu.Unlock()
	if slamSvc.closed {
		slamSvc.logger.Warn("Predict called after closed")
		return ErrClosed
	}

	poses, err := slamSvc.model.Predict(slamSvc.set, control, dt, slamSvc.src)
	if err != nil {
		return err
	}
	return slamSvc.set.SetPoses(poses)
}

// Observe initializes a new landmark from a range-bearing reading taken at the current poses and
// returns the slot it was stored in.
func (slamSvc *FastSLAMService) Observe(ctx context.Context, reading observation.Reading) (int, error) {
	_, span := trace.StartSpan(ctx, "viamfastslam::FastSLAMService::Observe")
	defer span.End()

	slamSvc.mu.Lock()
	defer slamSvc.mu.Unlock()
	if slamSvc.closed {
		slamSvc.logger.Warn("Observe called after closed")
		return 0, ErrClosed
	}

	positions, covs, err := observation.Landmark(slamSvc.set, reading, slamSvc.sensorNoise, slamSvc.mode)
	if err != nil {
		return 0, err
	}
	if err := slamSvc.set.AppendObservation(positions, covs...); err != nil {
		return 0, err
	}
	slot := slamSvc.set.ObservedLandmarks() - 1
	slamSvc.logger.Debugw("landmark added", "slot", slot, "range", reading.Range, "bearing", reading.Bearing)
	return slot, nil
}

// Position returns the mean particle pose. Heading is expressed as a rotation about +Z.
func (slamSvc *FastSLAMService) Position(ctx context.Context) (spatialmath.Pose, error) {
	_, span := trace.StartSpan(ctx, "viamfastslam::FastSLAMService::Position")
	defer span.End()

	slamSvc.mu.RLock()
	defer slamSvc.mu.RUnlock()
	if slamSvc.closed {
		slamSvc.logger.Warn("Position called after closed")
		return nil, ErrClosed
	}

	mean := slamSvc.set.MeanPose()
	return spatialmath.NewPose(
		r3.Vector{X: mean.X, Y: mean.Y},
		&spatialmath.OrientationVectorDegrees{OZ: 1, Theta: rdkutils.RadToDeg(mean.Theta)},
	), nil
}

// Close stops the sensor process. Calling it more than once is a no-op.
func (slamSvc *FastSLAMService) Close(ctx context.Context) error {
	slamSvc.logger.Info("Closing fastslam service")

	// the sensor process calls Predict, so it is stopped before taking the lock
	slamSvc.cancelSensorProcessFunc()
	slamSvc.sensorProcessWorkers.Wait()

	slamSvc.mu.Lock()
	defer slamSvc.mu.Unlock()
	if slamSvc.closed {
		slamSvc.logger.Warn("Close() called multiple times")
		return nil
	}
	slamSvc.closed = true

	slamSvc.logger.Info("Closing complete")
	return nil
}
