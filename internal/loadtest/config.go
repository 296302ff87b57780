// Package loadtest drives a running matchpool service: it creates a session,
// pushes scoring notifications through the feed endpoint concurrently and
// verifies the settled balances.
package loadtest

import (
	"errors"
	"time"
)

// ErrVerification is returned when the settled session is inconsistent.
var ErrVerification = errors.New("verification failed")

// Config holds configuration for a load run.
type Config struct {
	BaseURL               string        // Base URL of the service
	MatchID               string        // Match the session follows; generated when empty
	Participants          int           // Participants in the wager group
	PlayersPerParticipant int           // Players selected by each participant
	NumEvents             int           // Unique scoring notifications to push
	DuplicateRatio        float64       // Share of extra redeliveries, 0..1
	Workers               int           // Concurrent submitters
	Timeout               time.Duration // HTTP request timeout
	SettleTimeout         time.Duration // How long to wait for the worker to apply everything
	Seed                  uint64        // Generator seed; 0 picks one
	OutputFile            string        // Optional JSON dump of pushed messages
	Keep                  bool          // Keep the session after the run
	Verbose               bool          // Log progress
}

// Stats holds run statistics.
type Stats struct {
	SessionID       string
	EventsGenerated int
	EventsSubmitted int
	EventsAccepted  int
	EventsDuplicate int
	EventsRejected  int // backpressure after retries
	EventsFailed    int
	EventsApplied   int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
