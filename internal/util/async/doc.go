// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunParallel] executes tasks concurrently and returns every failure joined
// into one error, so one failing task never hides or cancels the others.
// Worker joins fan out through it.
package async
