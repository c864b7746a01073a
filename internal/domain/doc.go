// Package domain models historical traffic incident reports and the derived
// training grid for the risk estimation engine.
//
// # Data Source
//
// Incident reports originate from municipal traffic office records. Each
// report carries the neighborhood (barangay) where the incident happened and
// the wall-clock time it was committed. Reports arrive either as CSV exports
// of the office spreadsheet or as JSON records on the raw incident topic.
//
// # Grid Densification
//
// Raw reports contain only positive events: a row exists because an incident
// happened. The classifier, however, must learn from explicit negatives, so
// training operates on a dense grid covering every (location, hour) pair for
// every location seen in the input and every hour 0-23. A pair is labeled
// positive iff at least one report exists for that exact combination; a
// location with no reports at all still contributes 24 negative samples.
// The grid always holds exactly |locations| x 24 samples with no duplicates.
//
// # Peak Hours
//
// Hours 7-9 and 17-19 are commute windows and carry an auxiliary peak-hour
// flag. The flag is derived, never stored in source data.
//
// # Hour Conventions
//
// Internally hours are 0-indexed (0-23). The external serving boundary
// accepts 1-indexed hours (1-24) and shifts by -1; see the service package.
package domain
