package webhook

import "context"

// SummaryReport is the wrap-up record posted when a meeting closes.
type SummaryReport struct {
	MeetingID string `json:"meeting_id"`
	Topic     string `json:"topic"`
	Language  string `json:"language"`
	Date      string `json:"date"`
	Summary   string `json:"summary"`
}

type Sender interface {
	SendSummary(ctx context.Context, report SummaryReport) error
}
