// Package mcp serves the themed tools over the Model Context Protocol.
//
// The Dispatcher owns the protocol semantics: which tools are listed, how
// arguments are validated, and how failures map to JSON-RPC errors. Server
// adapts it to the go-sdk, using stdio in production and in-memory
// transports in tests.
//
// Every tool name seen on the wire is a theme id. Role lookup happens per
// request, so ids from a previously active theme are simply unknown.
package mcp
