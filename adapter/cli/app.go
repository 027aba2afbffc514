package cli

import (
	commentsDomain "github.com/felixgeelhaar/capstan/internal/comments/domain"
	lifecycleApp "github.com/felixgeelhaar/capstan/internal/lifecycle/application"
	scheduleCommands "github.com/felixgeelhaar/capstan/internal/scheduling/application/commands"
	scheduleServices "github.com/felixgeelhaar/capstan/internal/scheduling/application/services"
	"github.com/felixgeelhaar/capstan/internal/scheduling/infrastructure/ical"
)

// App holds the CLI application dependencies.
type App struct {
	// Scheduling
	ScheduleEventHandler  *scheduleCommands.ScheduleEventHandler
	ScheduleSeriesHandler *scheduleCommands.ScheduleSeriesHandler
	TransactionManager    *scheduleServices.TransactionManager
	Sweeper               *scheduleServices.Sweeper
	CalendarBuilder       *ical.CalendarBuilder

	// Lifecycle
	MutationCoordinator *lifecycleApp.MutationCoordinator

	// Comments
	CommentStore commentsDomain.Store
}

var app *App

// SetApp sets the CLI application.
func SetApp(a *App) {
	app = a
}

// GetApp returns the CLI application.
func GetApp() *App {
	return app
}
