package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest asks for one user's calls created in [From, To).
type CallsSummaryRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
}

type CallsSummary struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`

	TotalCalls      int `json:"total_calls"`
	RingingCalls    int `json:"ringing_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	CompletedCalls  int `json:"completed_calls"`
	MissedCalls     int `json:"missed_calls"`
	BlockedCalls    int `json:"blocked_calls"`
	FailedCalls     int `json:"failed_calls"`

	// ScreenedCalls have a stored transcription; SpamFlaggedCalls have a spam
	// score at or above SpamThreshold.
	ScreenedCalls    int     `json:"screened_calls"`
	SpamFlaggedCalls int     `json:"spam_flagged_calls"`
	SpamThreshold    float64 `json:"spam_threshold"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// Intents counts calls per classified intent label.
	Intents map[string]int `json:"intents"`
}
