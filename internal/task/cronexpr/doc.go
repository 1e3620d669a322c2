// Package cronexpr evaluates cron expressions.
//
// It is the only place that knows about robfig/cron. Callers get two pure
// operations: validate an expression and compute the first occurrence at or
// after a reference instant.
package cronexpr
