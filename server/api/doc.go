// Package api serves the intentflow execution API.
//
//	POST   /v1/executions            run a graph synchronously
//	POST   /v1/executions/validate   validate a graph, return its order
//	GET    /v1/executions            ids of running executions
//	GET    /v1/executions/:id        stored response of a finished execution
//	GET    /v1/executions/:id/events progress stream (SSE)
//	DELETE /v1/executions/:id        cancel a running execution
//	GET    /v1/intent-types          registered intent types
//
// Clients that want progress pick an execution id, open the event stream
// for it, then submit with the id in the X-Execution-Id header.
package api
