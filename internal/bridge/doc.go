// Package bridge terminates the native messaging channel: it owns the
// host's stdin and stdout, decodes framed requests, hands each one to a
// Handler and frames the handler's response back.
//
// With the default concurrency of one, a request is fully answered before
// the next one is dispatched, so responses arrive in request order. Higher
// concurrency lets responses overtake each other; clients then match them
// by requestId.
//
// When the browser closes stdin, the shutdown grace period starts.
// Requests already decoded still get a response as long as they finish
// within it; requests still waiting for a slot when it runs out are
// answered with ErrShuttingDown instead of being started.
package bridge
