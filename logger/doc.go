// Package logger provides structured logging built on zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers. Execution, node and request identifiers stored
// in a context are attached automatically by WithContext.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("intentd").WithComponent("scheduler")
//	log.Info("execution finished", logger.Fields(logger.FieldExecutionID, id))
package logger
