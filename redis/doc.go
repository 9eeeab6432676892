// Package redis wraps go-redis for intentd: a configured client, a
// lifecycle component with health checks, pub/sub helpers used to fan out
// execution progress, and a TypedStore that keeps finished execution
// responses for later lookup.
//
//	comp := redis.NewComponent(cfg.Redis, log)
//	app.RegisterComponent(comp)
//	...
//	store := redis.NewTypedStore[dag.Response](comp.Client(), "intentflow:responses")
//	store.Save(ctx, resp.ExecutionID, resp, time.Hour)
package redis
