// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks wires the dashboard into the WAFFLE lifecycle. app.Run calls them
// in order: config, DB, schema, startup, handler, and finally shutdown.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "stratacovid",
	LoadConfig:     LoadConfig,
	ValidateConfig: ValidateConfig,
	ConnectDB:      ConnectDB,
	EnsureSchema:   EnsureSchema, // usage_stats validator + indexes
	Startup:        Startup,      // templates, gateway, sessions, recorder, jobs
	BuildHandler:   BuildHandler,
	Shutdown:       Shutdown,
}
