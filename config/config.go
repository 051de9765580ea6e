// Package config implements functions to assist with attribute evaluation in the FastSLAM service.
package config

import (
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"github.com/viam-modules/viam-fastslam/motion"
	"github.com/viam-modules/viam-fastslam/observation"
	"github.com/viam-modules/viam-fastslam/particles"
)

var (
	errMotionNoiseLength = errors.New("motion_noise must hold exactly 6 coefficients")
	errSensorNoiseLength = errors.New("sensor_noise must hold exactly 4 values, row major")
)

// Defaults applied by GetOptionalParameters.
var (
	DefaultInitialPoseNoise = particles.Pose{X: 0.01, Y: 0.01, Theta: 0.001}
	DefaultMotionNoise      = motion.Alphas{0.1, 0.01, 0.001, 0.0001, 0.0001, 0.0001}
	DefaultSensorNoise      = particles.Covariance{{0.3, 0.2}, {0.2, 0.5}}
)

// newError returns an error specific to a failure in the FastSLAM config.
func newError(configError string) error {
	return errors.Errorf("FastSLAM Service configuration error: %s", configError)
}

// Config describes how to configure the FastSLAM service.
type Config struct {
	MovementSensor   map[string]string `json:"movement_sensor"`
	NumParticles     int               `json:"number_of_particles"`
	MaxLandmarks     int               `json:"max_landmarks"`
	InitialPose      *particles.Pose   `json:"initial_pose"`
	InitialPoseNoise *particles.Pose   `json:"initial_pose_noise"`
	MotionNoise      []float64         `json:"motion_noise"`
	TrackWidth       float64           `json:"track_width"`
	SensorNoise      []float64         `json:"sensor_noise"`
	CovarianceMode   string            `json:"covariance_mode"`
	Seed             *uint64           `json:"seed"`
}

// OptionalConfigParams holds the config values after defaults have been applied.
type OptionalConfigParams struct {
	MovementSensorName            string
	MovementSensorDataFrequencyHz int
	InitialPose                   particles.Pose
	InitialPoseNoise              *particles.Pose
	MotionNoise                   motion.Alphas
	TrackWidth                    float64
	SensorNoise                   particles.Covariance
	CovarianceMode                observation.Mode
	Seed                          *uint64
}

// Validate creates the list of implicit dependencies.
func (config *Config) Validate(path string) ([]string, error) {
	if config.NumParticles == 0 {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "number_of_particles")
	}
	if config.MaxLandmarks == 0 {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "max_landmarks")
	}

	var err error
	if config.NumParticles < 0 {
		err = multierr.Append(err, errors.New("cannot specify number_of_particles less than zero"))
	}
	if config.MaxLandmarks < 0 {
		err = multierr.Append(err, errors.New("cannot specify max_landmarks less than zero"))
	}
	if len(config.MotionNoise) != 0 && len(config.MotionNoise) != len(motion.Alphas{}) {
		err = multierr.Append(err, errMotionNoiseLength)
	}
	if len(config.SensorNoise) != 0 && len(config.SensorNoise) != 4 {
		err = multierr.Append(err, errSensorNoiseLength)
	}
	if _, modeErr := observation.ParseMode(config.CovarianceMode); modeErr != nil {
		err = multierr.Append(err, modeErr)
	}
	if err != nil {
		return nil, utils.NewConfigValidationError(path, err)
	}

	var deps []string
	if config.MovementSensor != nil {
		name, ok := config.MovementSensor["name"]
		if !ok || name == "" {
			return nil, utils.NewConfigValidationFieldRequiredError(path, "movement_sensor[name]")
		}
		if hz, ok := config.MovementSensor["data_frequency_hz"]; ok {
			v, err := strconv.Atoi(hz)
			if err != nil {
				return nil, utils.NewConfigValidationError(path, errors.New("movement_sensor[data_frequency_hz] must only contain digits"))
			}
			if v < 0 {
				return nil, utils.NewConfigValidationError(path, errors.New("cannot specify movement_sensor[data_frequency_hz] less than zero"))
			}
		}
		deps = append(deps, name)
	}

	return deps, nil
}

// GetOptionalParameters sets any unset optional config parameters to their defaults and returns them.
// Numeric values are checked further by the particle set and motion model constructors.
func GetOptionalParameters(
	config *Config,
	defaultMovementSensorDataFrequencyHz int,
	logger logging.Logger,
) (OptionalConfigParams, error) {
	var optionalConfigParams OptionalConfigParams

	if config.MovementSensor == nil || config.MovementSensor["name"] == "" {
		logger.Debug("no movement_sensor given, controls must be supplied directly")
	} else {
		optionalConfigParams.MovementSensorName = config.MovementSensor["name"]
		hz := config.MovementSensor["data_frequency_hz"]
		if hz == "" {
			optionalConfigParams.MovementSensorDataFrequencyHz = defaultMovementSensorDataFrequencyHz
			logger.Debugf("config did not provide movement_sensor[data_frequency_hz], setting to default value of %d",
				defaultMovementSensorDataFrequencyHz)
		} else {
			v, err := strconv.Atoi(hz)
			if err != nil {
				return OptionalConfigParams{}, newError("movement_sensor[data_frequency_hz] must only contain digits")
			}
			optionalConfigParams.MovementSensorDataFrequencyHz = v
		}
	}

	if config.InitialPose != nil {
		optionalConfigParams.InitialPose = *config.InitialPose
	} else {
		logger.Debug("no initial_pose given, starting at the origin")
	}

	if config.InitialPoseNoise != nil {
		noise := *config.InitialPoseNoise
		optionalConfigParams.InitialPoseNoise = &noise
	} else {
		noise := DefaultInitialPoseNoise
		optionalConfigParams.InitialPoseNoise = &noise
		logger.Debugf("no initial_pose_noise given, setting to default value of %v", DefaultInitialPoseNoise)
	}

	switch len(config.MotionNoise) {
	case 0:
		optionalConfigParams.MotionNoise = DefaultMotionNoise
		logger.Debugf("no motion_noise given, setting to default value of %v", DefaultMotionNoise)
	case len(motion.Alphas{}):
		copy(optionalConfigParams.MotionNoise[:], config.MotionNoise)
	default:
		return OptionalConfigParams{}, newError(errMotionNoiseLength.Error())
	}

	optionalConfigParams.TrackWidth = config.TrackWidth

	switch len(config.SensorNoise) {
	case 0:
		optionalConfigParams.SensorNoise = DefaultSensorNoise
		logger.Debugf("no sensor_noise given, setting to default value of %v", DefaultSensorNoise)
	case 4:
		optionalConfigParams.SensorNoise = particles.Covariance{
			{config.SensorNoise[0], config.SensorNoise[1]},
			{config.SensorNoise[2], config.SensorNoise[3]},
		}
	default:
		return OptionalConfigParams{}, newError(errSensorNoiseLength.Error())
	}
	if err := optionalConfigParams.SensorNoise.Validate(); err != nil {
		return OptionalConfigParams{}, newError(errors.Wrap(err, "sensor_noise").Error())
	}

	mode, err := observation.ParseMode(config.CovarianceMode)
	if err != nil {
		return OptionalConfigParams{}, newError(err.Error())
	}
	if config.CovarianceMode == "" {
		logger.Debugf("no covariance_mode given, setting to default value of %q", mode)
	}
	optionalConfigParams.CovarianceMode = mode

	if config.Seed == nil {
		logger.Debug("no seed given, particle noise will not be reproducible")
	}
	optionalConfigParams.Seed = config.Seed

	return optionalConfigParams, nil
}
