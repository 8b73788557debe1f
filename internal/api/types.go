package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// PairingStatus describes the pairing state machine.
type PairingStatus struct {
	TerminalID  string         `json:"terminalId"`
	State       string         `json:"state"`
	PendingKind string         `json:"pendingKind,omitempty"`
	OpenedAt    string         `json:"openedAt,omitempty"`
	AttemptID   string         `json:"attemptId,omitempty"`
	Counters    map[string]int `json:"counters"`
	LastResult  string         `json:"lastResult,omitempty"`
	LastAt      string         `json:"lastAt,omitempty"`
}

// OutcomeSummary counts outcomes per result over a window.
type OutcomeSummary struct {
	Since    string `json:"since,omitempty"`
	Match    int    `json:"match"`
	Mismatch int    `json:"mismatch"`
	Unknown  int    `json:"unknown"`
	Total    int    `json:"total"`
	Last     string `json:"last,omitempty"`
}

// CheckStatus mirrors a preflight check result.
type CheckStatus struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional"`
	Detail   string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	StartedAt    string          `json:"startedAt,omitempty"`
	LockFilePath string          `json:"lockFilePath"`
	HistoryPath  string          `json:"historyPath,omitempty"`
	JournalDir   string          `json:"journalDir"`
	LogPath      string          `json:"logPath,omitempty"`
	Pairing      PairingStatus   `json:"pairing"`
	Today        *OutcomeSummary `json:"today,omitempty"`
	Checks       []CheckStatus   `json:"checks"`
}

// Outcome is one indexed pairing outcome.
type Outcome struct {
	ID         int64  `json:"id"`
	AttemptID  string `json:"attemptId,omitempty"`
	RecordedAt string `json:"recordedAt"`
	TerminalID string `json:"terminalId"`
	SiteCode   string `json:"siteCode"`
	OrderNo    string `json:"orderNo"`
	DispatchNo string `json:"dispatchNo"`
	Result     string `json:"result"`
	Raw        string `json:"raw,omitempty"`
}

// OutcomeListResponse wraps recent outcomes.
type OutcomeListResponse struct {
	Outcomes []Outcome `json:"outcomes"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
