package registration

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/cloudalign/pointcloud"
)

// Transform is a 4x4 homogeneous transform: a rotation composed with an
// optional uniform scale in the upper-left 3x3 block, and a translation in
// the final column. Transforms are immutable once created; composition and
// inversion return new values.
type Transform struct {
	m *mat.Dense
}

// IdentityTransform returns the identity transform.
func IdentityTransform() *Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return &Transform{m: m}
}

// NewTransform copies a 4x4 matrix into a Transform.
func NewTransform(src mat.Matrix) (*Transform, error) {
	r, c := src.Dims()
	if r != 4 || c != 4 {
		return nil, errors.Errorf("expected a 4x4 matrix, got %dx%d", r, c)
	}
	m := mat.NewDense(4, 4, nil)
	m.Copy(src)
	return &Transform{m: m}, nil
}

// newRigidTransform builds a transform from a 3x3 rotation and a translation.
func newRigidTransform(rot mat.Matrix, t r3.Vector) *Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, rot.At(i, j))
		}
	}
	m.Set(0, 3, t.X)
	m.Set(1, 3, t.Y)
	m.Set(2, 3, t.Z)
	m.Set(3, 3, 1)
	return &Transform{m: m}
}

// NewScaleAboutPoint returns the transform scaling uniformly by factor about
// the given center, leaving the center itself fixed.
func NewScaleAboutPoint(factor float64, center r3.Vector) *Transform {
	m := mat.NewDense(4, 4, nil)
	m.Set(0, 0, factor)
	m.Set(1, 1, factor)
	m.Set(2, 2, factor)
	m.Set(0, 3, center.X*(1-factor))
	m.Set(1, 3, center.Y*(1-factor))
	m.Set(2, 3, center.Z*(1-factor))
	m.Set(3, 3, 1)
	return &Transform{m: m}
}

// newSmallMotionTransform builds a rigid transform from a rotation vector
// (axis times angle, via Rodrigues' formula) and a translation. It is how the
// linearized estimators turn their 6-vector solution into a transform.
func newSmallMotionTransform(theta, t r3.Vector) *Transform {
	angle := theta.Norm()
	rot := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if angle > 0 {
		axis := theta.Mul(1 / angle)
		c, s := math.Cos(angle), math.Sin(angle)
		oneMinusC := 1 - c
		x, y, z := axis.X, axis.Y, axis.Z
		rot = mat.NewDense(3, 3, []float64{
			c + x*x*oneMinusC, x*y*oneMinusC - z*s, x*z*oneMinusC + y*s,
			y*x*oneMinusC + z*s, c + y*y*oneMinusC, y*z*oneMinusC - x*s,
			z*x*oneMinusC - y*s, z*y*oneMinusC + x*s, c + z*z*oneMinusC,
		})
	}
	return newRigidTransform(rot, t)
}

// Matrix returns a copy of the underlying 4x4 matrix.
func (tf *Transform) Matrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	m.Copy(tf.m)
	return m
}

// At returns the matrix entry at row i, column j.
func (tf *Transform) At(i, j int) float64 {
	return tf.m.At(i, j)
}

// Compose returns the transform equivalent to applying other first and then tf.
func (tf *Transform) Compose(other *Transform) *Transform {
	m := mat.NewDense(4, 4, nil)
	m.Mul(tf.m, other.m)
	return &Transform{m: m}
}

// Apply transforms a single point.
func (tf *Transform) Apply(p r3.Vector) r3.Vector {
	return pointcloud.TransformPoint(p, tf.m)
}

// ApplyTo transforms every point of a cloud, returning a new cloud.
func (tf *Transform) ApplyTo(cloud pointcloud.PointCloud) (pointcloud.PointCloud, error) {
	return pointcloud.TransformPointCloud(cloud, tf.m)
}

// ScaleFactor returns the uniform scale baked into the transform, recovered
// from the determinant of the upper-left block.
func (tf *Transform) ScaleFactor() float64 {
	det := mat.Det(tf.m.Slice(0, 3, 0, 3))
	return math.Cbrt(det)
}

// Rotation returns the 3x3 rotation block with the uniform scale divided out.
func (tf *Transform) Rotation() *mat.Dense {
	rot := mat.NewDense(3, 3, nil)
	rot.Copy(tf.m.Slice(0, 3, 0, 3))
	if s := tf.ScaleFactor(); s != 0 && !math.IsNaN(s) {
		rot.Scale(1/s, rot)
	}
	return rot
}

// Translation returns the translation column.
func (tf *Transform) Translation() r3.Vector {
	return r3.Vector{X: tf.m.At(0, 3), Y: tf.m.At(1, 3), Z: tf.m.At(2, 3)}
}

// HasNaN reports whether any matrix entry is not-a-number. A transform with
// NaN entries marks a diverged alignment and must not be applied.
func (tf *Transform) HasNaN() bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.IsNaN(tf.m.At(i, j)) {
				return true
			}
		}
	}
	return false
}

func (tf *Transform) String() string {
	return fmt.Sprintf("%v", mat.Formatted(tf.m, mat.Prefix(""), mat.Squeeze()))
}
