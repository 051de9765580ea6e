package particles

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Chi2Confidence95 is the chi-squared value with two degrees of freedom that encloses 95% of a
// bivariate Gaussian. Scaling covariance eigenvalues by it gives the squared semi-axes of the 95%
// uncertainty ellipse.
const Chi2Confidence95 = 5.991

// symmetryTolerance is relative to the magnitude of the matrix diagonal.
const symmetryTolerance = 1e-9

// Covariance is a 2x2 positional covariance matrix in row-major order.
type Covariance [2][2]float64

// Identity returns the 2x2 identity covariance.
func Identity() Covariance {
	return Covariance{{1, 0}, {0, 1}}
}

// Diagonal returns a covariance with the given variances and no correlation.
func Diagonal(varX, varY float64) Covariance {
	return Covariance{{varX, 0}, {0, varY}}
}

// CovarianceFromSym converts a 2x2 gonum symmetric matrix into a Covariance.
func CovarianceFromSym(s mat.Symmetric) (Covariance, error) {
	if s.SymmetricDim() != 2 {
		return Covariance{}, errors.Wrapf(ErrShapeMismatch, "covariance must be 2x2, got %dx%d", s.SymmetricDim(), s.SymmetricDim())
	}
	return Covariance{
		{s.At(0, 0), s.At(0, 1)},
		{s.At(1, 0), s.At(1, 1)},
	}, nil
}

// Sym returns the covariance as a gonum symmetric matrix. The upper triangle is used.
func (c Covariance) Sym() *mat.SymDense {
	return mat.NewSymDense(2, []float64{
		c[0][0], c[0][1],
		c[0][1], c[1][1],
	})
}

// Validate returns ErrInvalidMeasurement unless the matrix is finite, symmetric and positive
// semi-definite.
func (c Covariance) Validate() error {
	for _, row := range c {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(ErrInvalidMeasurement, "covariance %v has non-finite entries", c)
			}
		}
	}
	scale := math.Max(1, math.Abs(c[0][0])+math.Abs(c[1][1]))
	tol := symmetryTolerance * scale
	if math.Abs(c[0][1]-c[1][0]) > tol {
		return errors.Wrapf(ErrInvalidMeasurement, "covariance %v is not symmetric", c)
	}
	// the determinant is quadratic in the entries, so its rounding error is too
	detTol := symmetryTolerance * scale * scale
	if c[0][0] < -tol || c[1][1] < -tol || c[0][0]*c[1][1]-c[0][1]*c[1][0] < -detTol {
		return errors.Wrapf(ErrInvalidMeasurement, "covariance %v is not positive semi-definite", c)
	}
	return nil
}

// Eigen holds the eigenvalues of a covariance in ascending order and the matching unit eigenvectors.
type Eigen struct {
	Values  [2]float64
	Vectors [2]r2.Point
}

// Eigen decomposes the covariance with a symmetric eigensolver.
func (c Covariance) Eigen() (Eigen, error) {
	var es mat.EigenSym
	if ok := es.Factorize(c.Sym(), true); !ok {
		return Eigen{}, errors.Wrapf(ErrInvalidMeasurement, "eigendecomposition of %v did not converge", c)
	}
	values := es.Values(nil)
	var vectors mat.Dense
	es.VectorsTo(&vectors)
	return Eigen{
		Values: [2]float64{values[0], values[1]},
		Vectors: [2]r2.Point{
			{X: vectors.At(0, 0), Y: vectors.At(1, 0)},
			{X: vectors.At(0, 1), Y: vectors.At(1, 1)},
		},
	}, nil
}

// Ellipse is an uncertainty ellipse around a landmark estimate.
type Ellipse struct {
	Center    r2.Point
	SemiMajor float64
	SemiMinor float64
	// Angle of the major axis from the x axis, in radians.
	Angle float64
}

// EllipseFrom scales the eigen decomposition by chi2 to produce the confidence ellipse centred at
// center. Slightly negative eigenvalues from round-off are clamped to zero.
func EllipseFrom(center r2.Point, e Eigen, chi2 float64) Ellipse {
	minor := math.Sqrt(chi2 * math.Max(0, e.Values[0]))
	major := math.Sqrt(chi2 * math.Max(0, e.Values[1]))
	return Ellipse{
		Center:    center,
		SemiMajor: major,
		SemiMinor: minor,
		Angle:     math.Atan2(e.Vectors[1].Y, e.Vectors[1].X),
	}
}
