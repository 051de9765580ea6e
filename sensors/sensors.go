// Package sensors defines the sensor inputs of the FastSLAM service.
package sensors

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/components/movementsensor/replay"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/utils/contextutils"
	goutils "go.viam.com/utils"
)

const (
	replayTimeTolerance         = 10 * time.Millisecond
	replayTimestampErrorMessage = "replay sensor timestamp parse RFC3339Nano error"
)

func newReadingContext(ctx context.Context) (context.Context, map[string][]string) {
	return contextutils.ContextWithMetadata(ctx)
}

// readingTime returns the time a reading is from. Replay sensors put the requested time in the
// metadata; live readings are stamped now.
func readingTime(md map[string][]string) (time.Time, bool, error) {
	timeRequestedMetadata, ok := md[contextutils.TimeRequestedMetadataKey]
	if !ok {
		return time.Now().UTC(), false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, timeRequestedMetadata[0])
	if err != nil {
		return time.Time{}, true, errors.Wrap(err, replayTimestampErrorMessage)
	}
	return t, true, nil
}

func averageReadingTimes(a, b time.Time) time.Time {
	if a.After(b) {
		a, b = b, a
	}
	return a.Add(b.Sub(a) / 2)
}

// ValidateGetControlData checks every sensorValidationInterval if the provided control sensor
// returned a valid timed reading until either success or sensorValidationMaxTimeout has elapsed.
// Returns an error if no valid reading was returned.
func ValidateGetControlData(
	ctx context.Context,
	cs TimedControlSensor,
	sensorValidationMaxTimeout time.Duration,
	sensorValidationInterval time.Duration,
	logger logging.Logger,
) error {
	ctx, span := trace.StartSpan(ctx, "viamfastslam::sensors::ValidateGetControlData")
	defer span.End()

	startTime := time.Now().UTC()

	for {
		_, err := cs.TimedControlSensorReading(ctx)
		if err == nil {
			break
		}

		logger.Debugw("ValidateGetControlData hit error: ", "error", err)
		// a replay sensor with no data ready is allowed through, the sensor process stops once it
		// reports the end of the dataset
		if strings.Contains(err.Error(), replay.ErrEndOfDataset.Error()) {
			break
		}
		if time.Since(startTime) >= sensorValidationMaxTimeout {
			return errors.Wrap(err, "ValidateGetControlData timeout")
		}
		if !goutils.SelectContextOrWait(ctx, sensorValidationInterval) {
			return ctx.Err()
		}
	}

	return nil
}
