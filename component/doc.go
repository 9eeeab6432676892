// Package component defines lifecycle-managed infrastructure: anything the
// daemon starts before serving and stops on shutdown (HTTP server, Redis
// client, intent engine).
//
// Components are registered with a Registry, started in registration order
// and stopped in reverse.
package component
