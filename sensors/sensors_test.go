package sensors_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/movementsensor/replay"
	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	s "github.com/viam-modules/viam-fastslam/sensors"
	"github.com/viam-modules/viam-fastslam/sensors/inject"
)

func TestValidateGetControlData(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	sensorValidationMaxTimeout := time.Duration(50) * time.Millisecond
	sensorValidationInterval := time.Duration(10) * time.Millisecond

	goodSensor := &inject.TimedControlSensor{}
	goodSensor.TimedControlSensorReadingFunc = func(ctx context.Context) (s.TimedControlReadingResponse, error) {
		return s.TimedControlReadingResponse{ReadingTime: time.Now().UTC()}, nil
	}

	warmingUpSensor := func() *inject.TimedControlSensor {
		counter := 0
		cs := &inject.TimedControlSensor{}
		cs.TimedControlSensorReadingFunc = func(ctx context.Context) (s.TimedControlReadingResponse, error) {
			counter++
			if counter == 1 {
				return s.TimedControlReadingResponse{}, errors.Errorf("warming up %d", counter)
			}
			return s.TimedControlReadingResponse{ReadingTime: time.Now().UTC()}, nil
		}
		return cs
	}

	invalidSensor := &inject.TimedControlSensor{}
	invalidSensor.TimedControlSensorReadingFunc = func(ctx context.Context) (s.TimedControlReadingResponse, error) {
		return s.TimedControlReadingResponse{}, errors.New(s.InvalidSensorTestErrMsg)
	}

	t.Run("returns nil if a reading succeeds immediately", func(t *testing.T) {
		err := s.ValidateGetControlData(ctx, goodSensor, sensorValidationMaxTimeout, sensorValidationInterval, logger)
		test.That(t, err, test.ShouldBeNil)
	})

	t.Run("returns nil if a reading succeeds within the timeout", func(t *testing.T) {
		err := s.ValidateGetControlData(ctx, warmingUpSensor(), sensorValidationMaxTimeout, sensorValidationInterval, logger)
		test.That(t, err, test.ShouldBeNil)
	})

	t.Run("returns nil if a replay sensor has reached the end of its dataset", func(t *testing.T) {
		finished := &inject.TimedControlSensor{}
		finished.TimedControlSensorReadingFunc = func(ctx context.Context) (s.TimedControlReadingResponse, error) {
			return s.TimedControlReadingResponse{}, replay.ErrEndOfDataset
		}
		err := s.ValidateGetControlData(ctx, finished, sensorValidationMaxTimeout, sensorValidationInterval, logger)
		test.That(t, err, test.ShouldBeNil)
	})

	t.Run("returns error if no reading succeeds within the timeout", func(t *testing.T) {
		err := s.ValidateGetControlData(ctx, invalidSensor, sensorValidationMaxTimeout, sensorValidationInterval, logger)
		test.That(t, err, test.ShouldBeError, errors.New("ValidateGetControlData timeout: "+s.InvalidSensorTestErrMsg))
	})

	t.Run("returns error if no reading succeeds by the time the context is cancelled", func(t *testing.T) {
		cancelledCtx, cancelFunc := context.WithCancel(context.Background())
		cancelFunc()

		err := s.ValidateGetControlData(cancelledCtx, warmingUpSensor(), sensorValidationMaxTimeout, sensorValidationInterval, logger)
		test.That(t, err, test.ShouldBeError, context.Canceled)
	})
}
