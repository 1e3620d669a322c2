// Package logx is cronhost's structured logging: a small Logger over
// zerolog plus a Service that owns the outputs. Console output is human
// readable with a short caller, file output is JSON, and error lines can be
// forwarded to an AlertSink at a bounded rate.
package logx
