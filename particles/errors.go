package particles

import "github.com/pkg/errors"

var (
	// ErrInvalidConfiguration denotes bad construction arguments such as non-positive counts or capacities.
	ErrInvalidConfiguration = errors.New("invalid particle set configuration")

	// ErrCapacityExceeded denotes that a landmark slot was requested once every slot is in use.
	ErrCapacityExceeded = errors.New("landmark capacity exceeded")

	// ErrInvalidMeasurement denotes a physically invalid reading or a covariance that is not symmetric
	// positive semi-definite.
	ErrInvalidMeasurement = errors.New("invalid measurement")

	// ErrShapeMismatch denotes that an input does not hold one entry per particle.
	ErrShapeMismatch = errors.New("input does not match particle count")

	// ErrSlotOutOfRange denotes a read or write of a landmark slot that has not been observed yet.
	ErrSlotOutOfRange = errors.New("landmark slot out of range")

	// ErrIndexOutOfRange denotes a particle index outside the set.
	ErrIndexOutOfRange = errors.New("particle index out of range")

	// ErrNoPendingLandmark denotes a covariance append with no landmark slot waiting for one.
	ErrNoPendingLandmark = errors.New("no landmark is waiting for a covariance")
)
