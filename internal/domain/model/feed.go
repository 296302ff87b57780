package model

import "time"

// NotificationKind routes a live feed notification.
type NotificationKind string

const (
	NotificationSubstitution NotificationKind = "substitution"
	NotificationScoring      NotificationKind = "scoring"
)

// LiveSubstitution is a substitution as reported by the live match feed.
type LiveSubstitution struct {
	OutExternalID string
	InExternalID  string
	Minute        *int
	TeamID        string
}

// LiveScoring is a scoring event as reported by the live match feed.
type LiveScoring struct {
	EventType        EventType
	PlayerExternalID string
	Minute           *int
}

// FeedNotification is one decoded live feed message bound to a match.
type FeedNotification struct {
	ID           string
	MatchID      string
	Kind         NotificationKind
	Substitution *LiveSubstitution
	Scoring      *LiveScoring
	Received     time.Time
}
