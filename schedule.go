package sketch

import (
	"fmt"
	"slices"
)

type Stage struct {
	Name string
}

// Frame order: Prelude runs once in Setup, then every frame runs PreUpdate,
// Update, the user draw, PostUpdate, PreRender, the backend submit, Render
// and PostRender. Finale runs once on Close.
var (
	Prelude    = Stage{Name: "Prelude"}
	PreUpdate  = Stage{Name: "PreUpdate"}
	Update     = Stage{Name: "Update"}
	PostUpdate = Stage{Name: "PostUpdate"}
	PreRender  = Stage{Name: "PreRender"}
	Render     = Stage{Name: "Render"}
	PostRender = Stage{Name: "PostRender"}
	Finale     = Stage{Name: "Finale"}
)

func defaultStages() []Stage {
	return []Stage{Prelude, PreUpdate, Update, PostUpdate, PreRender, Render, PostRender, Finale}
}

type systemScheduleBuilder struct {
	inStage  Stage
	onEnter  FrameState
	hasState bool
	system   systemFn
}

func System(system systemFn) systemScheduleBuilder {
	return systemScheduleBuilder{
		system:  system,
		inStage: Update,
	}
}

func (sched systemScheduleBuilder) InStage(s Stage) systemScheduleBuilder {
	sched.inStage = s
	return sched
}

// OnEnter runs the system once whenever the driver enters state.
func (sched systemScheduleBuilder) OnEnter(state FrameState) systemScheduleBuilder {
	sched.onEnter = state
	sched.hasState = true
	return sched
}

type stagePosition int

const (
	stageBefore stagePosition = iota
	stageAfter
)

type stagePositionBuilder struct {
	position stagePosition
	target   Stage
}

func BeforeStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{
		position: stageBefore,
		target:   s,
	}
}

func AfterStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{
		position: stageAfter,
		target:   s,
	}
}

func (app *App) UseStage(stage Stage, where stagePositionBuilder) *App {
	var stageIdx int = -1
	for i, s := range app.stages {
		if s.Name == where.target.Name {
			stageIdx = i
			break
		}
	}
	if -1 == stageIdx {
		panic(fmt.Sprintf("Stage %v not found", where.target.Name))
	}
	if where.position == stageAfter {
		stageIdx++
	}
	app.stages = slices.Insert(app.stages, stageIdx, stage)
	app.systems[stage.Name] = make([]systemFn, 0)
	return app
}

func (app *App) UseSystem(system systemScheduleBuilder) *App {
	if system.hasState {
		app.transitions[system.onEnter] = append(app.transitions[system.onEnter], system.system)
		return app
	}
	if _, ok := app.systems[system.inStage.Name]; !ok {
		panic(fmt.Sprintf("Stage %v doesn't exist", system.inStage.Name))
	}
	app.systems[system.inStage.Name] = append(app.systems[system.inStage.Name], system.system)
	return app
}

// frameStages are the stages run on every frame, in order.
func (app *App) frameStages() []Stage {
	out := make([]Stage, 0, len(app.stages))
	for _, s := range app.stages {
		if s.Name == Prelude.Name || s.Name == Finale.Name {
			continue
		}
		out = append(out, s)
	}
	return out
}
