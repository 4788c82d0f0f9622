// Package invoker turns one native messaging request into one response by
// delegating to an external handler process.
//
// Invoker starts a fresh process per request: the request JSON is written
// to the child's stdin, stdin is closed, and the child's stdout is parsed
// once it exits. Worker keeps a single child alive and multiplexes
// requests to it over a framed channel on its stdin and stdout, keyed by a
// correlation id.
//
// Failures never escape as Go errors from Handle: spawn failures, non-zero
// exits, unparsable output and timeouts all become error envelopes.
package invoker
