// Package inject provides injectable versions of the FastSLAM sensor interfaces for tests.
package inject

import (
	"context"

	s "github.com/viam-modules/viam-fastslam/sensors"
)

// TimedControlSensor is an injected TimedControlSensor.
type TimedControlSensor struct {
	s.ControlSensor
	NameFunc                      func() string
	DataFrequencyHzFunc           func() int
	TimedControlSensorReadingFunc func(ctx context.Context) (s.TimedControlReadingResponse, error)
}

// Name calls the injected Name or the real version.
func (tcs *TimedControlSensor) Name() string {
	if tcs.NameFunc == nil {
		return tcs.ControlSensor.Name()
	}
	return tcs.NameFunc()
}

// DataFrequencyHz calls the injected DataFrequencyHz or the real version.
func (tcs *TimedControlSensor) DataFrequencyHz() int {
	if tcs.DataFrequencyHzFunc == nil {
		return tcs.ControlSensor.DataFrequencyHz()
	}
	return tcs.DataFrequencyHzFunc()
}

// TimedControlSensorReading calls the injected TimedControlSensorReading or the real version.
func (tcs *TimedControlSensor) TimedControlSensorReading(ctx context.Context) (s.TimedControlReadingResponse, error) {
	if tcs.TimedControlSensorReadingFunc == nil {
		return tcs.ControlSensor.TimedControlSensorReading(ctx)
	}
	return tcs.TimedControlSensorReadingFunc(ctx)
}
