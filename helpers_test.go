// Package viamfastslam_test tests the FastSLAM service with injected sensors.
package viamfastslam_test

import (
	"context"
	"testing"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/test"

	viamfastslam "github.com/viam-modules/viam-fastslam"
	vfConfig "github.com/viam-modules/viam-fastslam/config"
	s "github.com/viam-modules/viam-fastslam/sensors"
)

const (
	sensorTestMaxTimeout = 50 * time.Millisecond
	sensorTestInterval   = 10 * time.Millisecond
)

func createSLAMService(
	t *testing.T,
	attrCfg *vfConfig.Config,
	deps resource.Dependencies,
	logger logging.Logger,
	testTimedControlSensorOverride s.TimedControlSensor,
) (*viamfastslam.FastSLAMService, error) {
	t.Helper()

	ctx := context.Background()
	cfgService := resource.Config{Name: "test", API: generic.API, Model: viamfastslam.Model}
	cfgService.ConvertedAttributes = attrCfg

	sensorDeps, err := attrCfg.Validate("path")
	if err != nil {
		return nil, err
	}
	if attrCfg.MovementSensor != nil {
		test.That(t, sensorDeps, test.ShouldResemble, []string{attrCfg.MovementSensor["name"]})
	}

	svc, err := viamfastslam.New(
		ctx,
		deps,
		cfgService,
		logger,
		sensorTestMaxTimeout,
		sensorTestInterval,
		testTimedControlSensorOverride,
	)
	if err != nil {
		test.That(t, svc, test.ShouldBeNil)
		return nil, err
	}

	test.That(t, svc, test.ShouldNotBeNil)
	return svc, nil
}
