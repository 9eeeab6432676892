// Package bootstrap runs a service's lifecycle: start components, run
// hooks, block until a signal, then stop everything within
// ServiceConfig.ShutdownTimeout.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(redisComponent)
//	app.OnStop("tracing", shutdownTracing)
//	err = app.Run(ctx)
//
// RunTask gives one-shot tools the same lifecycle around a finite task.
package bootstrap
