// Package sensorprocess contains the logic to feed control sensor readings to the FastSLAM prediction step.
package sensorprocess

import (
	"context"
	"sync"
	"time"

	"go.viam.com/rdk/logging"

	"github.com/viam-modules/viam-fastslam/motion"
	s "github.com/viam-modules/viam-fastslam/sensors"
)

// Predictor advances the particle set by one motion update.
type Predictor interface {
	Predict(ctx context.Context, control motion.Control, dt float64) error
}

// PredictorMock represents a fake Predictor.
type PredictorMock struct {
	PredictFunc func(ctx context.Context, control motion.Control, dt float64) error
}

// Predict calls the injected PredictFunc; panics if it is nil.
func (pm *PredictorMock) Predict(ctx context.Context, control motion.Control, dt float64) error {
	return pm.PredictFunc(ctx, control, dt)
}

// Config holds config needed throughout the process of turning control readings into motion updates.
type Config struct {
	Predictor     Predictor
	ControlSensor s.TimedControlSensor
	Logger        logging.Logger

	previousReading s.TimedControlReadingResponse

	Mutex *sync.Mutex
}

// LatestReadingTime returns the time of the last control reading that was accepted, or the zero time
// if none has been.
func (config *Config) LatestReadingTime() time.Time {
	config.Mutex.Lock()
	defer config.Mutex.Unlock()
	return config.previousReading.ReadingTime
}

func (config *Config) updateMutexProtectedPreviousReading(reading s.TimedControlReadingResponse) {
	config.Mutex.Lock()
	config.previousReading = reading
	config.Mutex.Unlock()
}

func (config *Config) mutexProtectedPreviousReading() s.TimedControlReadingResponse {
	config.Mutex.Lock()
	defer config.Mutex.Unlock()
	return config.previousReading
}
