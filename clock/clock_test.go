package clock

import (
	"testing"
	"time"

	gc "gopkg.in/check.v1"
)

func Test(t *testing.T) { gc.TestingT(t) }

var _ = gc.Suite(&clockSuite{})

type clockSuite struct{}

func (clockSuite) TestRealClockAdvancesOnItsOwn(c *gc.C) {
	rc := NewReal()
	t0 := rc.Now()
	time.Sleep(time.Millisecond)
	t1 := rc.Now()
	c.Assert(t1.After(t0), gc.Equals, true, gc.Commentf("expected the real clock to move forward on its own"))
}

func (clockSuite) TestFakeClockOnlyAdvancesExplicitly(c *gc.C) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := NewFake(start)
	c.Assert(fc.Now(), gc.Equals, start)

	// Sleeping the real world does not move a fake clock.
	time.Sleep(2 * time.Millisecond)
	c.Assert(fc.Now(), gc.Equals, start)

	fc.Advance(90 * time.Second)
	c.Assert(fc.Now(), gc.DeepEquals, start.Add(90*time.Second))
}

func (clockSuite) TestFakeClockSet(c *gc.C) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := NewFake(start)

	target := start.Add(time.Hour)
	fc.Set(target)
	c.Assert(fc.Now(), gc.DeepEquals, target)
}
