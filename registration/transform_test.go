package registration

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestIdentityTransform(t *testing.T) {
	id := IdentityTransform()
	p := r3.Vector{X: 1, Y: -2, Z: 3}
	test.That(t, id.Apply(p), test.ShouldResemble, p)
	test.That(t, id.Translation(), test.ShouldResemble, r3.Vector{})
	test.That(t, id.ScaleFactor(), test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, id.HasNaN(), test.ShouldBeFalse)
}

func TestNewTransformDims(t *testing.T) {
	_, err := NewTransform(mat.NewDense(3, 3, nil))
	test.That(t, err, test.ShouldNotBeNil)

	tf, err := NewTransform(IdentityTransform().Matrix())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tf.HasNaN(), test.ShouldBeFalse)
}

func TestComposeOrder(t *testing.T) {
	// rotate 90 degrees about z, then translate: translation is unrotated
	rot := newSmallMotionTransform(r3.Vector{Z: math.Pi / 2}, r3.Vector{})
	trans := newSmallMotionTransform(r3.Vector{}, r3.Vector{X: 1})

	combined := trans.Compose(rot) // rotate first
	q := combined.Apply(r3.Vector{X: 1})
	test.That(t, q.X, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, q.Y, test.ShouldAlmostEqual, 1, 1e-9)

	combined = rot.Compose(trans) // translate first
	q = combined.Apply(r3.Vector{X: 1})
	test.That(t, q.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, q.Y, test.ShouldAlmostEqual, 2, 1e-9)
}

func TestScaleAboutPoint(t *testing.T) {
	center := r3.Vector{X: 1, Y: 1, Z: 1}
	tf := NewScaleAboutPoint(2, center)

	// center is fixed
	test.That(t, tf.Apply(center), test.ShouldResemble, center)

	q := tf.Apply(r3.Vector{X: 2, Y: 1, Z: 1})
	test.That(t, q.X, test.ShouldAlmostEqual, 3, 1e-12)
	test.That(t, q.Y, test.ShouldAlmostEqual, 1, 1e-12)

	test.That(t, tf.ScaleFactor(), test.ShouldAlmostEqual, 2, 1e-9)

	// rotation block with scale divided out is the identity
	rot := tf.Rotation()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			test.That(t, rot.At(i, j), test.ShouldAlmostEqual, want, 1e-9)
		}
	}
}

func TestSmallMotionTransform(t *testing.T) {
	// quarter turn about z via Rodrigues
	tf := newSmallMotionTransform(r3.Vector{Z: math.Pi / 2}, r3.Vector{X: 1, Y: 2, Z: 3})
	q := tf.Apply(r3.Vector{X: 1})
	test.That(t, q.X, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, q.Y, test.ShouldAlmostEqual, 3, 1e-12)
	test.That(t, q.Z, test.ShouldAlmostEqual, 3, 1e-12)

	// zero rotation vector gives a pure translation
	tf = newSmallMotionTransform(r3.Vector{}, r3.Vector{X: 5})
	test.That(t, tf.Translation(), test.ShouldResemble, r3.Vector{X: 5})
	test.That(t, tf.ScaleFactor(), test.ShouldAlmostEqual, 1, 1e-12)
}

func TestHasNaN(t *testing.T) {
	m := IdentityTransform().Matrix()
	m.Set(1, 3, math.NaN())
	tf, err := NewTransform(m)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tf.HasNaN(), test.ShouldBeTrue)
}
