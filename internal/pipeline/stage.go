package pipeline

import "fmt"

// Stage is the position of a run in the pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageConnecting
	StageConnected
	StageConnectFailed
	StageFetching
	StageFetched
	StageFetchEmpty
	StageFetchFailed
	StageGenerating
	StageDone
	StageAborted
)

var stageNames = map[Stage]string{
	StageIdle:          "idle",
	StageConnecting:    "connecting",
	StageConnected:     "connected",
	StageConnectFailed: "connect failed",
	StageFetching:      "fetching",
	StageFetched:       "fetched",
	StageFetchEmpty:    "no emails",
	StageFetchFailed:   "fetch failed",
	StageGenerating:    "generating",
	StageDone:          "done",
	StageAborted:       "aborted",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Terminal reports whether a run that reached s is over.
func (s Stage) Terminal() bool {
	switch s {
	case StageConnectFailed, StageFetchEmpty, StageFetchFailed, StageDone, StageAborted:
		return true
	}
	return false
}

// Failed reports whether s ends a run because of an error. FetchEmpty
// is terminal but informational.
func (s Stage) Failed() bool {
	switch s {
	case StageConnectFailed, StageFetchFailed, StageAborted:
		return true
	}
	return false
}

// StageError records the stage at which a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
