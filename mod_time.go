package sketch

import (
	"time"
)

type Time struct {
	Time    time.Time
	Dt      time.Duration
	Elapsed time.Duration
	Frames  uint64
}

type TimeModule struct {
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{
		Time: time.Now(),
		Dt:   0,
	})
	cmd.UseSystem(System(timeSystem).InStage(PreUpdate))
}

// timeSystem reports a zero delta on the first frame.
func timeSystem(timeResource *Time) {
	now := time.Now()

	if timeResource.Frames > 0 {
		timeResource.Dt = now.Sub(timeResource.Time)
		timeResource.Elapsed += timeResource.Dt
	}
	timeResource.Time = now
	timeResource.Frames++
}
