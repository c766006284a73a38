package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"study-buddy/internal/models"
	"study-buddy/internal/services"
)

const maxMultipartMemory = 8 << 20 // 8 MB

type Server struct {
	router     *mux.Router
	study      *services.StudyService
	documents  *services.DocumentService
	history    *services.HistoryService
	flashcards *services.FlashcardService
	jobs       *JobManager
	logger     *slog.Logger
}

// NewServer wires the study endpoints. history and flashcards may be nil, in
// which case the history and deck endpoints report that history is disabled.
func NewServer(
	study *services.StudyService,
	documents *services.DocumentService,
	history *services.HistoryService,
	flashcards *services.FlashcardService,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:     mux.NewRouter(),
		study:      study,
		documents:  documents,
		history:    history,
		flashcards: flashcards,
		jobs:       NewJobManager(),
		logger:     logger,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/study/{action}", s.handleStudyTopic).Methods(http.MethodPost)
	api.HandleFunc("/videos/summary", s.handleSummarizeVideo).Methods(http.MethodPost)
	api.HandleFunc("/documents/summary", s.handleSummarizeDocument).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", s.handleJobStatus).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/cards/next", s.handleNextCard).Methods(http.MethodGet)
	api.HandleFunc("/cards/stats", s.handleCardStats).Methods(http.MethodGet)
	api.HandleFunc("/cards/{id:[0-9]+}/review", s.handleReviewCard).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"history": s.history != nil,
	})
}

type topicRequest struct {
	Topic string `json:"topic"`
}

func (s *Server) handleStudyTopic(w http.ResponseWriter, r *http.Request) {
	action := models.Action(mux.Vars(r)["action"])
	if !action.TopicAction() {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown study action %q", action))
		return
	}

	var payload topicRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	topic := strings.TrimSpace(payload.Topic)
	if topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	snapshot := s.startJob(services.Request{Action: action, Topic: topic}, topic, nil)
	writeJSON(w, http.StatusAccepted, snapshot)
}

type videoRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleSummarizeVideo(w http.ResponseWriter, r *http.Request) {
	var payload videoRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	snapshot := s.startJob(services.Request{Action: models.ActionVideoSummary, URL: payload.URL}, payload.URL, nil)
	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) handleSummarizeDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if form := r.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	upload, err := s.documents.Stage(header.Filename, file)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedDocument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cleanup := func() {
		if err := s.documents.Discard(upload); err != nil {
			s.logger.Warn("discard upload", "upload", upload.ID, "error", err)
		}
	}
	req := services.Request{Action: models.ActionDocumentSummary, DocumentPath: upload.StoredPath}
	snapshot := s.startJob(req, upload.OriginalName, cleanup)
	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.GetJob(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// startJob registers a pending job and runs the request in the background.
func (s *Server) startJob(req services.Request, input string, cleanup func()) *StudyJob {
	jobID, snapshot := s.jobs.CreateJob(req.Action, input, services.PendingMessage(req.Action))
	go s.runJob(context.Background(), jobID, req, input, cleanup)
	return snapshot
}

func (s *Server) runJob(ctx context.Context, jobID string, req services.Request, input string, cleanup func()) {
	if cleanup != nil {
		defer cleanup()
	}

	started := time.Now().UTC()
	s.study.Run(ctx, req, func(update services.Update) {
		switch update.Status {
		case services.StatusPending:
			s.jobs.MarkPending(jobID, update.Message)
		case services.StatusDone:
			cards := s.persist(ctx, jobID, req.Action, input, started, update)
			s.jobs.MarkDone(jobID, update.Message, update.Reason.String(), update.Reason == services.ReasonNone, cards)
		}
	})
}

// persist records the finished session and, for flashcard results, saves the
// generated cards as a deck. It returns the number of saved cards.
func (s *Server) persist(ctx context.Context, jobID string, action models.Action, input string, started time.Time, update services.Update) int {
	if s.history == nil {
		return 0
	}

	session := &models.Session{
		JobID:      jobID,
		Action:     action,
		Input:      input,
		Status:     string(update.Status),
		Reason:     update.Reason.String(),
		Output:     update.Message,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	sessionID, err := s.history.Record(ctx, session)
	if err != nil {
		s.logger.Error("record session", "job", jobID, "error", err)
		return 0
	}

	if action != models.ActionFlashcards || update.Reason != services.ReasonNone || s.flashcards == nil {
		return 0
	}
	deck, count, err := s.flashcards.SaveDeck(ctx, sessionID, input, update.Message)
	if err != nil {
		s.logger.Warn("save flashcard deck", "job", jobID, "error", err)
		return 0
	}
	s.logger.Info("saved flashcard deck", "job", jobID, "deck", deck.ID, "cards", count)
	return count
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}

	sessions, err := s.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, map[string]any{
			"id":          session.ID,
			"job_id":      session.JobID,
			"action":      session.Action,
			"input":       session.Input,
			"status":      session.Status,
			"reason":      session.Reason,
			"output":      session.Output,
			"started_at":  session.StartedAt.Format(timeLayout),
			"finished_at": session.FinishedAt.Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleNextCard(w http.ResponseWriter, r *http.Request) {
	if s.flashcards == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	card, err := s.flashcards.NextCard(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoDueCards) {
			writeJSON(w, http.StatusOK, map[string]any{
				"card":    nil,
				"message": "No cards due. Come back later!",
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"card": map[string]any{
			"id":        card.ID,
			"front":     card.Front,
			"back":      card.Back,
			"due":       nullTimeToString(card.Due),
			"topic":     nullSQLString(card.Topic),
			"state":     card.State,
			"stability": card.Stability,
		},
	})
}

func (s *Server) handleCardStats(w http.ResponseWriter, r *http.Request) {
	if s.flashcards == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	stats, err := s.flashcards.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

type reviewRequest struct {
	Rating string `json:"rating"`
}

func (s *Server) handleReviewCard(w http.ResponseWriter, r *http.Request) {
	if s.flashcards == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	cardID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}

	var payload reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	rating, err := parseRating(payload.Rating)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	card, logEntry, err := s.flashcards.ReviewCard(r.Context(), cardID, rating)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"card": map[string]any{
			"id":    card.ID,
			"due":   nullTimeToString(card.Due),
			"state": card.State,
		},
		"log": map[string]any{
			"rating":  logEntry.Rating,
			"due_in":  logEntry.ScheduledDays,
			"updated": logEntry.ReviewedAt.Format(timeLayout),
		},
	})
}

const timeLayout = time.RFC3339

func parseRating(raw string) (fsrs.Rating, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "again":
		return fsrs.Again, nil
	case "hard":
		return fsrs.Hard, nil
	case "good":
		return fsrs.Good, nil
	case "easy":
		return fsrs.Easy, nil
	default:
		return 0, fmt.Errorf("unknown rating %q", raw)
	}
}
