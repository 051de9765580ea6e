package sensors

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
	rdkutils "go.viam.com/rdk/utils"

	"github.com/viam-modules/viam-fastslam/motion"
)

const timedControlReadingTimeout = 5 * time.Second

// DefaultDataFrequencyHz is the polling rate used for live movement sensors when none is configured.
const DefaultDataFrequencyHz = 20

// ErrMovementSensorNoVelocity denotes that the provided movement sensor cannot report the velocities
// the motion model is driven by.
var ErrMovementSensorNoVelocity = errors.New("'movement_sensor' must support both LinearVelocity and AngularVelocity")

// TimedControlSensor describes a sensor that reports commanded or measured velocities, the time the
// reading is from & whether or not it is from a replay sensor.
type TimedControlSensor interface {
	Name() string
	DataFrequencyHz() int
	TimedControlSensorReading(ctx context.Context) (TimedControlReadingResponse, error)
}

// TimedControlReadingResponse represents a velocity reading with a time.
type TimedControlReadingResponse struct {
	Control        motion.Control
	ReadingTime    time.Time
	IsReplaySensor bool
}

// ControlSensor reads linear and angular velocity from a movement sensor.
type ControlSensor struct {
	name            string
	dataFrequencyHz int
	replay          bool
	sensor          movementsensor.MovementSensor
}

// Name returns the name of the control sensor.
func (cs *ControlSensor) Name() string {
	return cs.name
}

// DataFrequencyHz returns the data rate of the control sensor.
func (cs *ControlSensor) DataFrequencyHz() int {
	return cs.dataFrequencyHz
}

// TimedControlSensorReading returns the forward linear velocity and yaw rate of the sensor. Replay
// sensors report each value with its own timestamp; the two are re-read until they fall within
// replayTimeTolerance of each other.
func (cs *ControlSensor) TimedControlSensorReading(ctx context.Context) (TimedControlReadingResponse, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timedControlReadingTimeout)
	defer cancel()

	var (
		linVel                  r3.Vector
		angVel                  spatialmath.AngularVelocity
		timeLinVel, timeAngVel  time.Time
		replayLinVel, replayAng bool
		err                     error
	)
	for {
		select {
		case <-timeoutCtx.Done():
			return TimedControlReadingResponse{}, timeoutCtx.Err()
		default:
		}

		if timeLinVel.IsZero() || timeLinVel.Before(timeAngVel) {
			ctxWithMetadata, md := newReadingContext(timeoutCtx)
			if linVel, err = cs.sensor.LinearVelocity(ctxWithMetadata, make(map[string]interface{})); err != nil {
				return TimedControlReadingResponse{}, errors.Wrap(err, "LinearVelocity error")
			}
			if timeLinVel, replayLinVel, err = readingTime(md); err != nil {
				return TimedControlReadingResponse{}, err
			}
		}

		if timeAngVel.IsZero() || timeAngVel.Before(timeLinVel) {
			ctxWithMetadata, md := newReadingContext(timeoutCtx)
			if angVel, err = cs.sensor.AngularVelocity(ctxWithMetadata, make(map[string]interface{})); err != nil {
				return TimedControlReadingResponse{}, errors.Wrap(err, "AngularVelocity error")
			}
			if timeAngVel, replayAng, err = readingTime(md); err != nil {
				return TimedControlReadingResponse{}, err
			}
		}

		cs.replay = replayLinVel || replayAng
		if !cs.replay || math.Abs(float64(timeLinVel.Sub(timeAngVel))) < float64(replayTimeTolerance) {
			break
		}
	}

	return TimedControlReadingResponse{
		Control: motion.Control{
			// bases report forward motion along +Y
			Linear:  linVel.Y,
			Angular: rdkutils.DegToRad(angVel.Z),
		},
		ReadingTime:    averageReadingTimes(timeLinVel, timeAngVel),
		IsReplaySensor: cs.replay,
	}, nil
}

// NewControlSensor returns a new control sensor. An empty name returns an empty sensor and no error.
func NewControlSensor(
	ctx context.Context,
	deps resource.Dependencies,
	movementSensorName string,
	dataFrequencyHz int,
	logger logging.Logger,
) (TimedControlSensor, error) {
	_, span := trace.StartSpan(ctx, "viamfastslam::sensors::NewControlSensor")
	defer span.End()
	if movementSensorName == "" {
		return &ControlSensor{}, nil
	}
	movementSensor, err := movementsensor.FromDependencies(deps, movementSensorName)
	if err != nil {
		return &ControlSensor{}, errors.Wrapf(err, "error getting movement sensor \"%v\" for slam service", movementSensorName)
	}

	properties, err := movementSensor.Properties(ctx, make(map[string]interface{}))
	if err != nil {
		return &ControlSensor{}, errors.Wrapf(err, "error getting movement sensor properties from \"%v\" for slam service", movementSensorName)
	}
	if !properties.LinearVelocitySupported || !properties.AngularVelocitySupported {
		return &ControlSensor{}, ErrMovementSensorNoVelocity
	}

	logger.Debugw("using movement sensor for controls", "name", movementSensorName, "data_frequency_hz", dataFrequencyHz)
	return &ControlSensor{
		name:            movementSensorName,
		dataFrequencyHz: dataFrequencyHz,
		sensor:          movementSensor,
	}, nil
}
