package sketch

// Commands is handed to modules at install time and to systems that ask for
// it. It is the only way for a system to touch the driver itself.
type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) UseSystem(system systemScheduleBuilder) *Commands {
	cmd.app.UseSystem(system)
	return cmd
}

func (cmd *Commands) UseStage(stage Stage, where stagePositionBuilder) *Commands {
	cmd.app.UseStage(stage, where)
	return cmd
}

// RequestClose asks the host loop to close the driver after the current frame.
func (cmd *Commands) RequestClose() {
	cmd.app.closeAsked = true
}
