// Package progress delivers execution progress events to clients.
//
// SSEPublisher writes events straight to the local SSE hub. In a
// multi-instance deployment RedisPublisher publishes them on
// "<prefix>:<execution id>" instead, and every instance runs a Relay that
// copies the channel back into its own hub, so a client can stream from
// any instance.
package progress
