// Package watch re-runs the export whenever the domain's preferences file
// changes on disk. Bursts of events are debounced into a single run and
// each run reports which settings changed since the previous one.
package watch
