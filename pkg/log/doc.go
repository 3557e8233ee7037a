// Package log is the structured logging port shared by every modelhost
// context.
//
// Components never import a logging library directly. They accept a Logger
// and attach context with With:
//
//	logger := log.NewZerologAdapter()
//	coord := logger.With(log.String("role", "coordinator"))
//	coord.Info("attempt started", log.String("attempt", id))
//
// NewNoopLogger discards everything and is the default for library users that
// do not pass a logger.
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
