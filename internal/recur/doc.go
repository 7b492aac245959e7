// Package recur models calendar recurrence for day selection in triggers.
//
// A trigger's day selection is split into two axes:
//   - day-of-month: "15", "L", "LW", "15W"
//   - day-of-week:  "MON", "TUE#3", "FRIL"
//
// Each axis is a List of Fragments. A List renders to the comma separated
// token grammar stored with persisted triggers and matches a date when any of
// its fragments does. An empty List is a wildcard. Axes combine the two lists
// with AND, and a Resolver scans forward day by day (bounded by a horizon) to
// find the next date that satisfies both.
//
// All values in this package are immutable and safe for concurrent use.
package recur
