package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestBasicPointCloud(t *testing.T) {
	pc := New()
	test.That(t, pc.Size(), test.ShouldEqual, 0)

	p0 := NewVector(0, 0, 0)
	test.That(t, pc.Set(p0, NewValueData(5)), test.ShouldBeNil)
	p1 := NewVector(1, 0, 1)
	test.That(t, pc.Set(p1, NewValueData(17)), test.ShouldBeNil)
	p2 := NewVector(-1, -2, 1)
	test.That(t, pc.Set(p2, nil), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)

	d, got := pc.At(1, 0, 1)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d.Value(), test.ShouldEqual, 17)

	_, got = pc.At(1, 1, 1)
	test.That(t, got, test.ShouldBeFalse)

	// setting an existing position overwrites, not appends
	test.That(t, pc.Set(p1, NewValueData(21)), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)
	d, got = pc.At(1, 0, 1)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d.Value(), test.ShouldEqual, 21)

	meta := pc.MetaData()
	test.That(t, meta.MinX, test.ShouldEqual, -1)
	test.That(t, meta.MaxX, test.ShouldEqual, 1)
	test.That(t, meta.MinY, test.ShouldEqual, -2)
	test.That(t, meta.MaxY, test.ShouldEqual, 0)
	test.That(t, meta.MinZ, test.ShouldEqual, 0)
	test.That(t, meta.MaxZ, test.ShouldEqual, 1)
	test.That(t, meta.HasValue, test.ShouldBeTrue)
	test.That(t, meta.HasColor, test.ShouldBeFalse)

	// TotalSum is callable on the value MetaData returns and reflects each
	// position once, overwrites included
	test.That(t, pc.MetaData().TotalSum(), test.ShouldResemble, r3.Vector{X: 0, Y: -2, Z: 2})
}

func TestIterateBatching(t *testing.T) {
	pc := New()
	for i := 0; i < 10; i++ {
		test.That(t, pc.Set(NewVector(float64(i), 0, 0), nil), test.ShouldBeNil)
	}

	seen := map[r3.Vector]int{}
	numBatches := 3
	for b := 0; b < numBatches; b++ {
		pc.Iterate(numBatches, b, func(p r3.Vector, d Data) bool {
			seen[p]++
			return true
		})
	}
	test.That(t, len(seen), test.ShouldEqual, 10)
	for _, count := range seen {
		test.That(t, count, test.ShouldEqual, 1)
	}

	// early exit
	visited := 0
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		visited++
		return visited < 4
	})
	test.That(t, visited, test.ShouldEqual, 4)
}
