package timeline

import (
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestRecordCapturesElapsed(t *testing.T) {
	mock := clock.NewMock()
	r := NewWithClock(mock)

	err := r.Record("load", func() error {
		mock.Add(250 * time.Millisecond)
		return nil
	})
	test.That(t, err, test.ShouldBeNil)

	err = r.Record("align", func() error {
		mock.Add(2 * time.Second)
		return nil
	})
	test.That(t, err, test.ShouldBeNil)

	entries := r.Entries()
	test.That(t, entries, test.ShouldHaveLength, 2)
	test.That(t, entries[0].Stage, test.ShouldEqual, "load")
	test.That(t, entries[0].Elapsed, test.ShouldEqual, 250*time.Millisecond)
	test.That(t, entries[1].Stage, test.ShouldEqual, "align")
	test.That(t, entries[1].Elapsed, test.ShouldEqual, 2*time.Second)
}

func TestRecordErrorPassesThrough(t *testing.T) {
	mock := clock.NewMock()
	r := NewWithClock(mock)

	boom := errors.New("boom")
	err := r.Record("export", func() error {
		mock.Add(time.Second)
		return boom
	})
	test.That(t, err, test.ShouldBeError, boom)

	// the failed stage is still timed
	entries := r.Entries()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].Elapsed, test.ShouldEqual, time.Second)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder

	ran := false
	err := r.Record("anything", func() error {
		ran = true
		return nil
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ran, test.ShouldBeTrue)
	test.That(t, r.Entries(), test.ShouldBeNil)

	boom := errors.New("boom")
	test.That(t, r.Record("anything", func() error { return boom }), test.ShouldBeError, boom)
}

func TestWriteTo(t *testing.T) {
	mock := clock.NewMock()
	r := NewWithClock(mock)

	test.That(t, r.Record("load", func() error {
		mock.Add(time.Second)
		return nil
	}), test.ShouldBeNil)
	test.That(t, r.Record("align", func() error {
		mock.Add(3 * time.Second)
		return nil
	}), test.ShouldBeNil)

	var sb strings.Builder
	n, err := r.WriteTo(&sb)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, int64(len(sb.String())))

	out := sb.String()
	test.That(t, out, test.ShouldContainSubstring, "load")
	test.That(t, out, test.ShouldContainSubstring, "1s")
	test.That(t, out, test.ShouldContainSubstring, "align")
	test.That(t, out, test.ShouldContainSubstring, "3s")
	test.That(t, out, test.ShouldContainSubstring, "total")
	test.That(t, out, test.ShouldContainSubstring, "4s")
}
