package sensors

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/components/movementsensor/replay"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/rdk/testutils/inject"
	"go.viam.com/rdk/utils/contextutils"
)

// BadTime can be used to represent something that should cause an error while parsing it as a time.
const BadTime = "NOT A TIME"

var (
	// TestTimestamp can be used to test specific timestamps provided by a replay sensor.
	TestTimestamp = time.Now().UTC().Format("2006-01-02T15:04:05.999999Z")
	// TestLinVel is the successful mock linear velocity result used for testing.
	TestLinVel = r3.Vector{X: 0.1, Y: 0.5, Z: 0}
	// TestAngVel is the successful mock angular velocity result used for testing, in degrees per second.
	TestAngVel = spatialmath.AngularVelocity{X: 0, Y: 0, Z: 90}
)

// TestSensor represents sensors used for testing.
type TestSensor string

const (
	// InvalidSensorTestErrMsg represents an error message that indicates that the sensor is invalid.
	InvalidSensorTestErrMsg = "invalid test sensor"

	// GoodControlSensor is a movement sensor that works as expected and returns velocities.
	GoodControlSensor TestSensor = "good_control_sensor"
	// ControlSensorWithErroringFunctions is a movement sensor whose velocity functions return errors.
	ControlSensorWithErroringFunctions TestSensor = "control_sensor_with_erroring_functions"
	// ReplayControlSensor is a replay movement sensor that works as expected.
	ReplayControlSensor TestSensor = "replay_control_sensor"
	// InvalidReplayControlSensor is a replay movement sensor whose meta timestamp is invalid.
	InvalidReplayControlSensor TestSensor = "invalid_replay_control_sensor"
	// FinishedReplayControlSensor is a replay movement sensor whose velocity functions return an end
	// of dataset error.
	FinishedReplayControlSensor TestSensor = "finished_replay_control_sensor"
	// ControlSensorWithInvalidProperties is a movement sensor that does not report velocities.
	ControlSensorWithInvalidProperties TestSensor = "control_sensor_with_invalid_properties"
	// ControlSensorWithErroringPropertiesFunc is a movement sensor whose Properties function returns an error.
	ControlSensorWithErroringPropertiesFunc TestSensor = "control_sensor_with_erroring_properties_function"
	// GibberishControlSensor is a movement sensor that can't be found in the dependencies.
	GibberishControlSensor TestSensor = "gibberish_control_sensor"
	// NoControlSensor represents that no movement sensor is set up or added.
	NoControlSensor TestSensor = ""
)

var testControlSensors = map[TestSensor]func() *inject.MovementSensor{
	GoodControlSensor:                       getGoodControlSensor,
	ControlSensorWithErroringFunctions:      getControlSensorWithErroringFunctions,
	ReplayControlSensor:                     func() *inject.MovementSensor { return getReplayControlSensor(TestTimestamp) },
	InvalidReplayControlSensor:              func() *inject.MovementSensor { return getReplayControlSensor(BadTime) },
	FinishedReplayControlSensor:             getFinishedReplayControlSensor,
	ControlSensorWithInvalidProperties:      getControlSensorWithInvalidProperties,
	ControlSensorWithErroringPropertiesFunc: getControlSensorWithErroringPropertiesFunc,
}

// SetupDeps returns the dependencies based on the movement sensor name passed as argument.
func SetupDeps(movementSensorName TestSensor) resource.Dependencies {
	deps := make(resource.Dependencies)
	if getMovementSensorFunc, ok := testControlSensors[movementSensorName]; ok {
		deps[movementsensor.Named(string(movementSensorName))] = getMovementSensorFunc()
	}
	return deps
}

func velocityProperties(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
	return &movementsensor.Properties{
		LinearVelocitySupported:  true,
		AngularVelocitySupported: true,
	}, nil
}

func getGoodControlSensor() *inject.MovementSensor {
	ms := &inject.MovementSensor{}
	ms.LinearVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
		return TestLinVel, nil
	}
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		return TestAngVel, nil
	}
	ms.PropertiesFunc = velocityProperties
	return ms
}

func getControlSensorWithErroringFunctions() *inject.MovementSensor {
	ms := &inject.MovementSensor{}
	ms.LinearVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
		return r3.Vector{}, errors.New(InvalidSensorTestErrMsg)
	}
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		return spatialmath.AngularVelocity{}, errors.New(InvalidSensorTestErrMsg)
	}
	ms.PropertiesFunc = velocityProperties
	return ms
}

func getReplayControlSensor(testTime string) *inject.MovementSensor {
	ms := &inject.MovementSensor{}
	ms.LinearVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
		md := ctx.Value(contextutils.MetadataContextKey)
		if mdMap, ok := md.(map[string][]string); ok {
			mdMap[contextutils.TimeRequestedMetadataKey] = []string{testTime}
		}
		return TestLinVel, nil
	}
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		md := ctx.Value(contextutils.MetadataContextKey)
		if mdMap, ok := md.(map[string][]string); ok {
			mdMap[contextutils.TimeRequestedMetadataKey] = []string{testTime}
		}
		return TestAngVel, nil
	}
	ms.PropertiesFunc = velocityProperties
	return ms
}

func getFinishedReplayControlSensor() *inject.MovementSensor {
	ms := &inject.MovementSensor{}
	ms.LinearVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (r3.Vector, error) {
		return r3.Vector{}, replay.ErrEndOfDataset
	}
	ms.AngularVelocityFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.AngularVelocity, error) {
		return spatialmath.AngularVelocity{}, replay.ErrEndOfDataset
	}
	ms.PropertiesFunc = velocityProperties
	return ms
}

func getControlSensorWithInvalidProperties() *inject.MovementSensor {
	ms := &inject.MovementSensor{}
	ms.PropertiesFunc = func(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
		return &movementsensor.Properties{
			LinearAccelerationSupported: true,
			AngularVelocitySupported:    true,
		}, nil
	}
	return ms
}

func getControlSensorWithErroringPropertiesFunc() *inject.MovementSensor {
	ms := &inject.MovementSensor{}
	ms.PropertiesFunc = func(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
		return &movementsensor.Properties{}, errors.New("error getting properties")
	}
	return ms
}
