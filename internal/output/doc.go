// Package output implements the three optional output streams spec.md §4.F
// describes — the event table, the plot-block stream, and the event/
// waveform archive — plus the post-run marker-insertion pass. Grounded on
// the teacher's elog package idiom of buffering per-row data and writing it
// out on a fixed cadence (elog.LogTable.WriteLastRowToFile), simplified
// here to the concrete binary/text formats spec.md §6 pins down rather than
// elog's generic tensor table, since none of this output is meant to be
// re-read by the teacher's own plotting stack.
package output
