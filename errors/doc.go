// Package errors defines the error model shared by the intent engine, its
// operation handlers and the HTTP API.
//
// Every failure that crosses a component boundary is an *AppError carrying a
// machine-readable code and a retryable flag. Operation handlers use the flag
// to tell the retry coordinator whether another attempt may succeed; the API
// layer renders the same value as an RFC 7807 style envelope.
package errors
