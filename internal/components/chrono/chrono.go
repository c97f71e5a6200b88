package chrono

import (
	"time"
	_ "time/tzdata"
)

var warsaw *time.Location

func init() {
	var err error
	warsaw, err = time.LoadLocation("Europe/Warsaw")
	if err != nil {
		panic(err)
	}
}

// Warsaw returns the [*time.Location] the portal reports its times in.
func Warsaw() *time.Location {
	return warsaw
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in Europe/Warsaw.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(warsaw)
}

// FixedTime always returns the same instant, it is meant for tests.
type FixedTime struct {
	At time.Time
}

func (f FixedTime) Now() time.Time {
	return f.At.In(warsaw)
}
