// Package memory provides the allocation primitive behind cake's
// control records: a typed pool that keeps record storage apart from
// the handle objects pointing at it and lets released records be
// reused instead of handed back to the garbage collector.
//
// The package is dependency-free.
package memory
