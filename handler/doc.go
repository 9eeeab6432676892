// Package handler holds built-in intent handlers that need no external
// service. Static answers every call from fixtures, which makes it the
// handler behind dry runs and local demos.
package handler
