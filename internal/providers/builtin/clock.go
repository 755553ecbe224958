package builtin

import (
	"context"
	"encoding/json"
	"time"
)

const ClockSchema = `{"type": "object", "properties": {}}`

type Clock struct {
	loc *time.Location
	now func() time.Time
}

func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{loc: loc, now: time.Now}
}

// CurrentTime ignores its arguments.
func (c *Clock) CurrentTime(_ context.Context, _ json.RawMessage) (string, error) {
	t := c.now().In(c.loc)
	return "The current time is " + t.Format("Monday, 2 January 2006 15:04:05 MST") + ".", nil
}

func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}
