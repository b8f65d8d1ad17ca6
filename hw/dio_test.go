package hw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDigitalInputEdgeHandler(t *testing.T) {
	var in DigitalInput

	var edges []bool
	in.SetHandler(func(value bool) { edges = append(edges, value) })

	in.Set(true)
	in.Set(true) // level unchanged, no edge
	in.Set(false)
	assert.Equal(t, []bool{true, false}, edges)
	assert.False(t, in.Get())
}

func TestDigitalOutputLevel(t *testing.T) {
	var out DigitalOutput
	assert.False(t, out.Get())
	out.Set(true)
	assert.True(t, out.Get())
}

func TestTickerTimerFires(t *testing.T) {
	timer := NewTickerTimer()
	fired := make(chan struct{}, 16)
	timer.SetHandler(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	timer.SetPeriod(time.Millisecond)

	timer.Start()
	defer timer.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	timer.Stop()
	timer.Stop() // idempotent
}
