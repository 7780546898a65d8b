package pointcloud

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func makeTestCloud(t *testing.T) PointCloud {
	t.Helper()
	pc := New()
	// coordinates exactly representable in float32
	test.That(t, pc.Set(NewVector(0, 0, 0), NewBasicData()), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(1.5, -0.25, 2), NewBasicData()), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(-3, 0.5, 0.125), NewBasicData()), test.ShouldBeNil)
	return pc
}

func TestPCDRoundTrip(t *testing.T) {
	for _, pcdType := range []PCDType{PCDAscii, PCDBinary} {
		cloud := makeTestCloud(t)
		var buf bytes.Buffer
		test.That(t, ToPCD(cloud, &buf, pcdType), test.ShouldBeNil)

		got, err := ReadPCD(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Size(), test.ShouldEqual, cloud.Size())
		cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
			test.That(t, CloudContains(got, p.X, p.Y, p.Z), test.ShouldBeTrue)
			return true
		})
	}
}

func TestPCDColorRoundTrip(t *testing.T) {
	cloud := New()
	c := color.NRGBA{R: 10, G: 200, B: 30, A: 255}
	test.That(t, cloud.Set(NewVector(1, 2, 3), NewColoredData(c)), test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, ToPCD(cloud, &buf, PCDBinary), test.ShouldBeNil)

	got, err := ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.MetaData().HasColor, test.ShouldBeTrue)
	d, found := got.At(1, 2, 3)
	test.That(t, found, test.ShouldBeTrue)
	r, g, b := d.RGB255()
	test.That(t, r, test.ShouldEqual, uint8(10))
	test.That(t, g, test.ShouldEqual, uint8(200))
	test.That(t, b, test.ShouldEqual, uint8(30))
}

func TestPCDBadHeader(t *testing.T) {
	_, err := ReadPCD(bytes.NewBufferString("VERSION .5\n"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ReadPCD(bytes.NewBufferString("FIELDS x y z\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewFromFileDispatch(t *testing.T) {
	logger := golog.NewTestLogger(t)

	_, err := NewFromFile("cloud.unsupported", logger)
	test.That(t, err, test.ShouldNotBeNil)

	dir := t.TempDir()
	fn := filepath.Join(dir, "cloud.pcd")
	cloud := makeTestCloud(t)
	test.That(t, WriteToFile(cloud, fn), test.ShouldBeNil)

	got, err := NewFromFile(fn, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Size(), test.ShouldEqual, cloud.Size())

	_, err = NewFromFile(filepath.Join(dir, "missing.pcd"), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewFromFileEmptyCloud(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()

	// a structurally valid pcd with zero points is a load error
	fn := filepath.Join(dir, "empty.pcd")
	var buf bytes.Buffer
	test.That(t, ToPCD(New(), &buf, PCDAscii), test.ShouldBeNil)
	test.That(t, os.WriteFile(fn, buf.Bytes(), 0o600), test.ShouldBeNil)

	_, err := NewFromFile(fn, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "empty")
}

func TestToPLYHeader(t *testing.T) {
	cloud := makeTestCloud(t)
	var buf bytes.Buffer
	test.That(t, ToPLY(cloud, &buf), test.ShouldBeNil)

	out := buf.String()
	test.That(t, out, test.ShouldContainSubstring, "format ascii 1.0")
	test.That(t, out, test.ShouldContainSubstring, "element vertex 3")
	test.That(t, out, test.ShouldContainSubstring, "end_header")
}
