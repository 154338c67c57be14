// Package application provides application initialization and dependency wiring.
// It encapsulates the creation of the pack-size registry (optionally persisted
// to a YAML snapshot), calculator, metrics, handlers, routers and HTTP server
// instances, keeping the main package focused on CLI parsing and orchestration.
package application
