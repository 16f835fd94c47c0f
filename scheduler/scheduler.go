package scheduler

// Package scheduler drives the recurring background work:
// - Alert check cycles on a fixed interval
// - Daily refresh of stored price history for alerted symbols
// - Weekly cleanup of old read notifications
//
// The jobs are implemented in jobs.go
