package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

// Action names one of the study handlers a user can trigger.
type Action string

const (
	ActionExplain         Action = "explain"
	ActionFlashcards      Action = "flashcards"
	ActionFollowUps       Action = "followups"
	ActionDocumentSummary Action = "document"
	ActionVideoSummary    Action = "video"
)

// TopicAction reports whether the action takes a free-text topic as input.
func (a Action) TopicAction() bool {
	return a == ActionExplain || a == ActionFlashcards || a == ActionFollowUps
}

// Upload is a user document staged on disk for the duration of one request.
type Upload struct {
	ID           string
	OriginalName string
	StoredPath   string
	Size         int64
	UploadedAt   time.Time
}

// Session is a finished study interaction kept in the history table.
type Session struct {
	ID         int64
	JobID      string
	Action     Action
	Input      string
	Status     string
	Reason     string
	Output     string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Deck struct {
	ID        int64
	Topic     string
	CreatedAt time.Time
}

type Card struct {
	ID            int64
	DeckID        int64
	Front         string
	Back          string
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Topic         sql.NullString
}

type ReviewLog struct {
	ID            int64
	CardID        int64
	Rating        int
	ScheduledDays int
	ElapsedDays   int
	State         int
	ReviewedAt    time.Time
}

func (c *Card) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   uint64(max(c.ElapsedDays, 0)),
		ScheduledDays: uint64(max(c.ScheduledDays, 0)),
		Reps:          uint64(max(c.Reps, 0)),
		Lapses:        uint64(max(c.Lapses, 0)),
		State:         fsrs.State(max(c.State, 0)),
	}
	if c.Due.Valid {
		card.Due = c.Due.Time
	}
	if c.LastReview.Valid {
		card.LastReview = c.LastReview.Time
	}
	return card
}

func (c *Card) ApplyFSRSCard(f fsrs.Card) {
	c.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	c.Stability = f.Stability
	c.Difficulty = f.Difficulty
	c.ElapsedDays = int(f.ElapsedDays)
	c.ScheduledDays = int(f.ScheduledDays)
	c.Reps = int(f.Reps)
	c.Lapses = int(f.Lapses)
	c.State = int(f.State)
	c.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}
