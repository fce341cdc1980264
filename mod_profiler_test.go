package sketch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfiler_Stats(t *testing.T) {
	p := NewProfiler()
	p.BeginScope("frame")
	p.BeginScope("draw")
	p.EndScope("draw")
	p.BeginScope("frame")
	p.EndScope("frame")
	assert.Equal(t, []string{"frame", "draw"}, p.Order)

	p.SetCount("draws", 3)
	p.SetCount("draws", 2)
	p.AddCount("reloads", 1)
	p.AddCount("reloads", 1)
	assert.Equal(t, 2, p.Counts["draws"])
	assert.Equal(t, 2, p.Counts["reloads"])

	stats := p.GetStatsString()
	assert.Less(t, strings.Index(stats, "frame"), strings.Index(stats, "draw "))
	assert.Less(t, strings.Index(stats, "draws"), strings.Index(stats, "reloads"))

	p.Scopes["frame"] = time.Second
	p.Reset()
	assert.Equal(t, time.Duration(0), p.Scopes["frame"])
	assert.Equal(t, []string{"frame", "draw"}, p.Order)
}
