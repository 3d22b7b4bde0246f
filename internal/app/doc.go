// Package app wires the geodash service together: configuration, logging,
// OpenTelemetry, the session store, the websocket hub, services and the
// HTTP router.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, file and environment
//	2. Initialize logging and observability
//	3. Create the session store and start the websocket hub
//	4. Build the preparation pipeline and services
//	5. Set up HTTP handlers and middleware
//	6. Configure the HTTP server
//
// # Usage
//
//	app, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return app.Run()
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. Stop drains active requests, stops the
// session sweeper, disconnects websocket clients and flushes telemetry.
//
// # Error Handling
//
// All initialization errors are returned to the caller. The package never
// calls os.Exit.
package app
