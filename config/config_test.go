package config

import (
	"encoding/json"
	"errors"
	"testing"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"
	"go.viam.com/utils"

	"github.com/viam-modules/viam-fastslam/observation"
	"github.com/viam-modules/viam-fastslam/particles"
)

const testCfgPath = "services.slam.attributes.fake"

func makeCfg() *Config {
	return &Config{
		MovementSensor: map[string]string{"name": "base_odometer", "data_frequency_hz": "20"},
		NumParticles:   100,
		MaxLandmarks:   10,
	}
}

func TestValidate(t *testing.T) {
	t.Run("Simplest valid config", func(t *testing.T) {
		deps, err := makeCfg().Validate(testCfgPath)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, deps, test.ShouldResemble, []string{"base_odometer"})
	})

	t.Run("Config without a movement sensor has no dependencies", func(t *testing.T) {
		cfg := makeCfg()
		cfg.MovementSensor = nil
		deps, err := cfg.Validate(testCfgPath)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, deps, test.ShouldBeEmpty)
	})

	t.Run("Config without required fields", func(t *testing.T) {
		cfg := makeCfg()
		cfg.NumParticles = 0
		_, err := cfg.Validate(testCfgPath)
		test.That(t, err, test.ShouldBeError, utils.NewConfigValidationFieldRequiredError(testCfgPath, "number_of_particles"))

		cfg = makeCfg()
		cfg.MaxLandmarks = 0
		_, err = cfg.Validate(testCfgPath)
		test.That(t, err, test.ShouldBeError, utils.NewConfigValidationFieldRequiredError(testCfgPath, "max_landmarks"))

		cfg = makeCfg()
		cfg.MovementSensor = map[string]string{"data_frequency_hz": "5"}
		_, err = cfg.Validate(testCfgPath)
		test.That(t, err, test.ShouldBeError, utils.NewConfigValidationFieldRequiredError(testCfgPath, "movement_sensor[name]"))
	})

	t.Run("Config with invalid values reports every problem", func(t *testing.T) {
		cfg := makeCfg()
		cfg.NumParticles = -1
		cfg.MotionNoise = []float64{1, 2}
		cfg.SensorNoise = []float64{1}
		cfg.CovarianceMode = "bogus"
		_, err := cfg.Validate(testCfgPath)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "number_of_particles less than zero")
		test.That(t, err.Error(), test.ShouldContainSubstring, errMotionNoiseLength.Error())
		test.That(t, err.Error(), test.ShouldContainSubstring, errSensorNoiseLength.Error())
		test.That(t, err.Error(), test.ShouldContainSubstring, "unknown covariance mode")
	})

	t.Run("Config with invalid movement sensor frequency", func(t *testing.T) {
		cfg := makeCfg()
		cfg.MovementSensor["data_frequency_hz"] = "fast"
		_, err := cfg.Validate(testCfgPath)
		test.That(t, err, test.ShouldBeError,
			utils.NewConfigValidationError(testCfgPath, errors.New("movement_sensor[data_frequency_hz] must only contain digits")))

		cfg.MovementSensor["data_frequency_hz"] = "-1"
		_, err = cfg.Validate(testCfgPath)
		test.That(t, err, test.ShouldBeError,
			utils.NewConfigValidationError(testCfgPath, errors.New("cannot specify movement_sensor[data_frequency_hz] less than zero")))
	})
}

func TestGetOptionalParameters(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("Pass default parameters", func(t *testing.T) {
		cfg := makeCfg()
		cfg.MovementSensor = map[string]string{"name": "base_odometer"}
		params, err := GetOptionalParameters(cfg, 20, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, params.MovementSensorName, test.ShouldEqual, "base_odometer")
		test.That(t, params.MovementSensorDataFrequencyHz, test.ShouldEqual, 20)
		test.That(t, params.InitialPose, test.ShouldResemble, particles.Pose{})
		test.That(t, *params.InitialPoseNoise, test.ShouldResemble, DefaultInitialPoseNoise)
		test.That(t, params.MotionNoise, test.ShouldResemble, DefaultMotionNoise)
		test.That(t, params.SensorNoise, test.ShouldResemble, DefaultSensorNoise)
		test.That(t, params.CovarianceMode, test.ShouldEqual, observation.PerParticleCovariance)
		test.That(t, params.Seed, test.ShouldBeNil)
	})

	t.Run("Return overrides", func(t *testing.T) {
		seed := uint64(42)
		cfg := makeCfg()
		cfg.InitialPose = &particles.Pose{X: 1, Y: 2, Theta: 3}
		cfg.InitialPoseNoise = &particles.Pose{}
		cfg.MotionNoise = []float64{1, 2, 3, 4, 5, 6}
		cfg.TrackWidth = 0.5
		cfg.SensorNoise = []float64{2, 0, 0, 3}
		cfg.CovarianceMode = string(observation.SharedCovariance)
		cfg.Seed = &seed

		params, err := GetOptionalParameters(cfg, 5, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, params.MovementSensorDataFrequencyHz, test.ShouldEqual, 20)
		test.That(t, params.InitialPose, test.ShouldResemble, particles.Pose{X: 1, Y: 2, Theta: 3})
		test.That(t, *params.InitialPoseNoise, test.ShouldResemble, particles.Pose{})
		test.That(t, params.MotionNoise[5], test.ShouldEqual, 6.0)
		test.That(t, params.TrackWidth, test.ShouldEqual, 0.5)
		test.That(t, params.SensorNoise, test.ShouldResemble, particles.Diagonal(2, 3))
		test.That(t, params.CovarianceMode, test.ShouldEqual, observation.SharedCovariance)
		test.That(t, *params.Seed, test.ShouldEqual, uint64(42))
	})

	t.Run("Fails on sensor noise that is not a covariance", func(t *testing.T) {
		cfg := makeCfg()
		cfg.SensorNoise = []float64{1, 2, 3, 4}
		_, err := GetOptionalParameters(cfg, 20, logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "FastSLAM Service configuration error: sensor_noise")
	})

	t.Run("Fails on a malformed frequency", func(t *testing.T) {
		cfg := makeCfg()
		cfg.MovementSensor["data_frequency_hz"] = "x"
		_, err := GetOptionalParameters(cfg, 20, logger)
		test.That(t, err, test.ShouldBeError, newError("movement_sensor[data_frequency_hz] must only contain digits"))
	})
}

func TestConfigAttributes(t *testing.T) {
	raw := []byte(`{
		"movement_sensor": {"name": "odom", "data_frequency_hz": "10"},
		"number_of_particles": 50,
		"max_landmarks": 4,
		"initial_pose": {"x": 1, "y": -1, "theta": 0.5},
		"motion_noise": [0.1, 0.01, 0.001, 0.0001, 0.0001, 0.0001],
		"sensor_noise": [0.3, 0.2, 0.2, 0.5],
		"covariance_mode": "shared",
		"seed": 7
	}`)
	var cfg Config
	test.That(t, json.Unmarshal(raw, &cfg), test.ShouldBeNil)

	deps, err := cfg.Validate(testCfgPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"odom"})
	test.That(t, *cfg.InitialPose, test.ShouldResemble, particles.Pose{X: 1, Y: -1, Theta: 0.5})
	test.That(t, *cfg.Seed, test.ShouldEqual, uint64(7))
}
