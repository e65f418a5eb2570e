package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem_SecondResolution(t *testing.T) {
	now := System{}.Now()
	assert.Zero(t, now.Nanosecond())
	assert.Equal(t, time.UTC, now.Location())
}

func TestFixed_Advance(t *testing.T) {
	c := &Fixed{T: time.Unix(100, 0)}
	c.Advance(time.Minute)
	assert.Equal(t, time.Unix(160, 0), c.Now())
}
