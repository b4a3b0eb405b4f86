package events

// RunStartedData contains data for RunStarted events.
type RunStartedData struct {
	RunID     string `json:"run_id"`
	Market    string `json:"market"`
	Objective string `json:"objective"`
}

// RunStageChangedData contains data for RunStageChanged events.
type RunStageChangedData struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"`
}

// RunCompletedData contains data for RunCompleted events.
type RunCompletedData struct {
	RunID          string  `json:"run_id"`
	Objective      string  `json:"objective"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// RunFailedData contains data for RunFailed events.
type RunFailedData struct {
	RunID      string `json:"run_id"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
	Infeasible bool   `json:"infeasible"`
}
