package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"study-buddy/internal/models"
)

var (
	// ErrNoDueCards indicates that there are no cards ready to review.
	ErrNoDueCards = errors.New("no due cards")
	// ErrNoFlashcards is returned when generated markdown holds no Q&A pairs.
	ErrNoFlashcards = errors.New("no flashcards found in generated text")
)

// FlashcardPrototype is a question/answer pair parsed from generated markdown.
type FlashcardPrototype struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

var (
	listItemPattern      = regexp.MustCompile(`^\s*\d+[.)]\s+(.*)$`)
	boldPattern          = regexp.MustCompile(`\*\*(.+?)\*\*`)
	questionLabelPattern = regexp.MustCompile(`(?i)^(?:q|question)\s*\d*\s*[:.]\s*`)
	answerLabelPattern   = regexp.MustCompile(`(?i)^[-*:\s]*(?:\*\*)?\s*(?:a|answer)\s*[:.]\s*(?:\*\*)?\s*`)
)

// ParseFlashcards extracts numbered Q&A items from markdown: each item carries
// its question in bold and the answer in the text that follows.
func ParseFlashcards(markdown string) []FlashcardPrototype {
	var items []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			items = append(items, strings.Join(current, "\n"))
		}
		current = nil
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := listItemPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = []string{m[1]}
			continue
		}
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "---") {
			flush()
			continue
		}
		if current != nil {
			current = append(current, line)
		}
	}
	flush()

	var cards []FlashcardPrototype
	for _, item := range items {
		if card, ok := parseFlashcardItem(item); ok {
			cards = append(cards, card)
		}
	}
	return cards
}

func parseFlashcardItem(item string) (FlashcardPrototype, bool) {
	loc := boldPattern.FindStringSubmatchIndex(item)
	if loc == nil {
		return FlashcardPrototype{}, false
	}
	bold := strings.TrimSpace(item[loc[2]:loc[3]])
	rest := item[loc[1]:]

	question := strings.TrimSpace(questionLabelPattern.ReplaceAllString(bold, ""))
	if question == "" {
		// "**Question:** text" keeps the question after the bold label.
		line, remainder, _ := strings.Cut(rest, "\n")
		question = strings.TrimSpace(line)
		rest = remainder
	}

	answer := answerLabelPattern.ReplaceAllString(strings.TrimSpace(rest), "")
	answer = strings.Join(strings.Fields(answer), " ")
	question = strings.Join(strings.Fields(question), " ")
	if question == "" || answer == "" {
		return FlashcardPrototype{}, false
	}
	return FlashcardPrototype{Front: question, Back: answer}, true
}

// FlashcardService stores generated flashcards as decks and schedules their
// review with FSRS.
type FlashcardService struct {
	db     *sql.DB
	params fsrs.Parameters
}

func NewFlashcardService(db *sql.DB) *FlashcardService {
	params := fsrs.DefaultParam()
	return &FlashcardService{db: db, params: params}
}

// SaveDeck parses markdown into cards and stores them under topic.
func (s *FlashcardService) SaveDeck(ctx context.Context, sessionID int64, topic, markdown string) (*models.Deck, int, error) {
	protos := ParseFlashcards(markdown)
	if len(protos) == 0 {
		return nil, 0, ErrNoFlashcards
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var session any
	if sessionID > 0 {
		session = sessionID
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO decks (session_id, topic, created_at) VALUES (?, ?, ?);
	`, session, topic, now)
	if err != nil {
		return nil, 0, fmt.Errorf("insert deck: %w", err)
	}
	deckID, err := res.LastInsertId()
	if err != nil {
		return nil, 0, fmt.Errorf("deck id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (deck_id, front, back, due, stability, difficulty, elapsed_days,
		                   scheduled_days, reps, lapses, state, last_review, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, 0, 0, 0, 0, 0, ?, NULL, ?, ?);
	`)
	if err != nil {
		return nil, 0, fmt.Errorf("prepare card insert: %w", err)
	}
	defer stmt.Close()

	for _, proto := range protos {
		if _, err = stmt.ExecContext(ctx, deckID, proto.Front, proto.Back, now, int(fsrs.New), now, now); err != nil {
			return nil, 0, fmt.Errorf("insert card %q: %w", proto.Front, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit deck: %w", err)
	}
	return &models.Deck{ID: deckID, Topic: topic, CreatedAt: now}, len(protos), nil
}

// NextCard returns the card that has been due the longest.
func (s *FlashcardService) NextCard(ctx context.Context) (*models.Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.deck_id, c.front, c.back, c.due, c.stability, c.difficulty,
		       c.elapsed_days, c.scheduled_days, c.reps, c.lapses, c.state, c.last_review,
		       c.created_at, c.updated_at, d.topic
		FROM cards c
		LEFT JOIN decks d ON c.deck_id = d.id
		WHERE c.due IS NOT NULL AND c.due <= ?
		ORDER BY c.due ASC, c.id ASC
		LIMIT 1;
	`, time.Now().UTC())
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDueCards
		}
		return nil, fmt.Errorf("next card: %w", err)
	}
	return card, nil
}

// ReviewCard updates the scheduling information based on the user's rating.
func (s *FlashcardService) ReviewCard(ctx context.Context, cardID int64, rating fsrs.Rating) (*models.Card, *models.ReviewLog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	card, err := scanCard(tx.QueryRowContext(ctx, `
		SELECT c.id, c.deck_id, c.front, c.back, c.due, c.stability, c.difficulty,
		       c.elapsed_days, c.scheduled_days, c.reps, c.lapses, c.state, c.last_review,
		       c.created_at, c.updated_at, d.topic
		FROM cards c
		LEFT JOIN decks d ON c.deck_id = d.id
		WHERE c.id = ?;
	`, cardID))
	if err != nil {
		return nil, nil, fmt.Errorf("load card %d: %w", cardID, err)
	}

	now := time.Now().UTC()
	scheduling := s.params.Repeat(card.ToFSRSCard(), now)
	info, ok := scheduling[rating]
	if !ok {
		err = fmt.Errorf("rating %d not supported", rating)
		return nil, nil, err
	}
	card.ApplyFSRSCard(info.Card)
	card.UpdatedAt = now

	if _, err = tx.ExecContext(ctx, `
		UPDATE cards
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
		    reps = ?, lapses = ?, state = ?, last_review = ?, updated_at = ?
		WHERE id = ?;
	`,
		nullTimePtr(card.Due),
		card.Stability,
		card.Difficulty,
		card.ElapsedDays,
		card.ScheduledDays,
		card.Reps,
		card.Lapses,
		card.State,
		nullTimePtr(card.LastReview),
		card.UpdatedAt,
		card.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("update card %d: %w", card.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (card_id, rating, scheduled_days, elapsed_days, state, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, card.ID, info.ReviewLog.Rating, info.ReviewLog.ScheduledDays, info.ReviewLog.ElapsedDays, info.ReviewLog.State, now); err != nil {
		return nil, nil, fmt.Errorf("insert review log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit review: %w", err)
	}

	log := &models.ReviewLog{
		CardID:        card.ID,
		Rating:        int(info.ReviewLog.Rating),
		ScheduledDays: int(info.ReviewLog.ScheduledDays),
		ElapsedDays:   int(info.ReviewLog.ElapsedDays),
		State:         int(info.ReviewLog.State),
		ReviewedAt:    now,
	}
	return card, log, nil
}

// Stats counts cards by scheduling state.
func (s *FlashcardService) Stats(ctx context.Context) (map[string]int, error) {
	now := time.Now().UTC()
	queries := []struct {
		key   string
		query string
		args  []any
	}{
		{"total", "SELECT COUNT(*) FROM cards;", nil},
		{"due", "SELECT COUNT(*) FROM cards WHERE due IS NOT NULL AND due <= ?;", []any{now}},
		{"new", "SELECT COUNT(*) FROM cards WHERE state = ?;", []any{int(fsrs.New)}},
		{"learning", "SELECT COUNT(*) FROM cards WHERE state = ?;", []any{int(fsrs.Learning)}},
		{"review", "SELECT COUNT(*) FROM cards WHERE state = ?;", []any{int(fsrs.Review)}},
	}

	stats := make(map[string]int, len(queries))
	for _, q := range queries {
		var count int
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s cards: %w", q.key, err)
		}
		stats[q.key] = count
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}
	if err := row.Scan(
		&card.ID,
		&card.DeckID,
		&card.Front,
		&card.Back,
		&card.Due,
		&card.Stability,
		&card.Difficulty,
		&card.ElapsedDays,
		&card.ScheduledDays,
		&card.Reps,
		&card.Lapses,
		&card.State,
		&card.LastReview,
		&card.CreatedAt,
		&card.UpdatedAt,
		&card.Topic,
	); err != nil {
		return nil, err
	}
	return card, nil
}

func nullTimePtr(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}
