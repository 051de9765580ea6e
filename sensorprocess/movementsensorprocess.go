package sensorprocess

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	replaymovementsensor "go.viam.com/rdk/components/movementsensor/replay"
	goutils "go.viam.com/utils"

	s "github.com/viam-modules/viam-fastslam/sensors"
)

// StartControlSensor polls the control sensor and applies a motion update for every reading after
// the first. Stops when the context is Done or, for replay sensors, when the dataset is exhausted;
// returns true in the latter case.
func (config *Config) StartControlSensor(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		default:
			if jobDone := config.addControlReading(ctx); jobDone {
				config.Logger.Info("control sensor replay dataset finished")
				return true
			}
		}
	}
}

// addControlReading gets the next reading, applies the motion update it closes and sleeps for the
// rest of the sensor's interval when live.
func (config *Config) addControlReading(ctx context.Context) bool {
	reading, err := config.ControlSensor.TimedControlSensorReading(ctx)
	if err != nil {
		if errors.Is(err, replaymovementsensor.ErrEndOfDataset) {
			return true
		}
		config.Logger.Warnw("skipping control reading", "error", err)
		return false
	}

	timeToSleep := config.tryAddControlReadingOnce(ctx, reading)
	if !reading.IsReplaySensor && timeToSleep > 0 {
		config.Logger.Debugf("control sensor sleep for %vms", timeToSleep)
		goutils.SelectContextOrWait(ctx, time.Duration(timeToSleep)*time.Millisecond)
	}
	return false
}

// tryAddControlReadingOnce predicts with the previous control over the time elapsed since it was
// read. Readings that do not move time forward are dropped. Returns the remainder of the sensor's
// interval in milliseconds; a live sensor without a data frequency is paced at DefaultDataFrequencyHz.
func (config *Config) tryAddControlReadingOnce(ctx context.Context, reading s.TimedControlReadingResponse) int {
	startTime := time.Now().UTC()

	previous := config.mutexProtectedPreviousReading()
	switch {
	case previous.ReadingTime.IsZero():
		config.updateMutexProtectedPreviousReading(reading)
	case !reading.ReadingTime.After(previous.ReadingTime):
		config.Logger.Debugw("dropping control reading that is not newer than the previous one",
			"reading_time", reading.ReadingTime, "previous_reading_time", previous.ReadingTime)
	default:
		dt := reading.ReadingTime.Sub(previous.ReadingTime).Seconds()
		if err := config.Predictor.Predict(ctx, previous.Control, dt); err != nil {
			config.Logger.Warnw("skipping control reading due to error from prediction", "error", err)
		} else {
			config.Logger.Debugw("applied control reading", "linear", previous.Control.Linear,
				"angular", previous.Control.Angular, "dt", dt)
		}
		config.updateMutexProtectedPreviousReading(reading)
	}

	// replay datasets run as fast as they are read, live sensors always get an interval
	frequencyHz := config.ControlSensor.DataFrequencyHz()
	if frequencyHz <= 0 {
		if reading.IsReplaySensor {
			return 0
		}
		frequencyHz = s.DefaultDataFrequencyHz
	}
	timeElapsedMs := int(time.Since(startTime).Milliseconds())
	return int(math.Max(0, float64(1000/frequencyHz-timeElapsedMs)))
}
