// Package webhook delegates an intent type to an HTTP service.
//
// Each call POSTs the resolved parameters as JSON:
//
//	{"execution_id": "...", "node_id": "...", "type": "token-trade",
//	 "attempt": 1, "parameters": {...}}
//
// A 2xx JSON body becomes the node result. Failures are classified so the
// engine's retry policy can act on them: 429, 5xx, timeouts and connection
// errors are retryable; other 4xx are final; 402 is INSUFFICIENT_FUNDS. A
// service that answers with an intentflow error envelope keeps its own code.
package webhook
