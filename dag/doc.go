// Package dag executes intent graphs: directed acyclic graphs of typed
// operations where a node may depend on, and be conditioned on, the results
// of earlier nodes.
//
// A Draft is validated by the Builder into an immutable Graph with a
// deterministic topological order. The Engine then runs the graph inside a
// per-request Execution: ready nodes are dispatched to a process-wide worker
// Pool with a bounded number in flight per execution, failures are retried on
// timers by the RetryCoordinator, nodes whose conditions are false are skipped
// together with everything downstream, and the outcome of every node is
// collected into a Response in topological order.
//
// Handlers for each intent type live in a Registry and receive parameters
// with {{node.field}} templates already resolved against the ResultStore.
package dag
