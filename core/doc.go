// Package core defines the domain model of event reconstruction.
//
// Low-level events are read from a timeline export into a LowLevelTimeline,
// an id-indexed arena that rule workers share read-only. Rules turn matching
// low-level events into HighLevelEvents, each carrying the keys extracted from
// its trigger, a reasoning artefact and the surrounding timeline context.
//
// MergeTimelines combines the per-rule outputs into one chronological
// timeline, folding events that describe the same activity into the first
// occurrence and recording the others in its MergedIDs.
//
// Errors that a run recovers from are typed (see errors.go) and aggregated in
// a Report instead of aborting the run.
package core
