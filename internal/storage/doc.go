// Package storage persists trigger definitions and an audit trail.
//
// Axis strings (day-of-month, day-of-week) and trigger expressions are
// stored exactly as given and returned byte-for-byte on read; the recurrence
// parser relies on that round trip.
package storage
