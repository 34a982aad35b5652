package services

import "time"

// RecordImported is published after each record that was written.
type RecordImported struct {
	Index int
	Total int
	Key   string
	// Updated is set when an existing investment fact was overwritten.
	Updated bool
}

// RecordFailed is published for each record that could not be written.
type RecordFailed struct {
	Index int
	Total int
	Err   RecordError
}

// ImportFinished is published once per run, after the last record.
type ImportFinished struct {
	Stats    ImportStats
	Duration time.Duration
}
