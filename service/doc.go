// Package service runs the cake lifecycle under load and reports on it.
//
// Stats observes lifecycle events, StressRunner races goroutines over
// shared owners and checks that every object is destroyed exactly once,
// and ReportJob files the resulting reports in the outbox.
package service
