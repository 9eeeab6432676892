// Package testutil provides mock handlers and a fluent draft builder for
// tests that drive the dag engine.
//
//	trade := testutil.NewMockHandler(map[string]any{"filled": true}).FailTimes(2, retryableErr)
//	reg := dag.NewRegistry()
//	reg.Register(dag.TypeTokenTrade, trade)
//
//	draft := testutil.NewDraft().
//		Node("sentiment", dag.TypeSentimentCheck).
//		Node("buy", dag.TypeTokenTrade).After("sentiment").When(`sentiment.label == "bullish"`).
//		Draft()
package testutil
