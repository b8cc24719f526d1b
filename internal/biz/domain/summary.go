package domain

import "time"

// TopSender is one ranked entry of a daily digest.
type TopSender struct {
	Handle    string // display handle (normalized phone or platform id)
	Count     int
	MentionID string // resolvable platform identity for the @ mention
}

// Summary is the result of one aggregation run over a group's message log.
type Summary struct {
	GroupID    string
	Date       time.Time
	TotalCount int
	Top        []TopSender
}

// DailySummary is the persisted record of a delivered digest.
type DailySummary struct {
	GroupID  string
	Date     time.Time
	Total    int
	TopLines []string
}
