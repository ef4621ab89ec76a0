// Package trigger computes and tracks the daily prompt schedule.
//
// A day's active window (WindowStart..WindowEnd) is split into Blocks
// equal-length blocks. Generate picks one random instant per block, keeping
// consecutive instants at least MinSpacing apart. A Tracker holds the
// current day's set and, on every Poll, decides whether the earliest
// pending instant is due.
//
// Nothing in this package performs I/O. Poll returns a Decision; reporting
// it is the caller's job.
package trigger
