package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"study-buddy/internal/models"
)

// Status is the lifecycle state of one study request as seen by the UI.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Update is a status notification emitted while a request runs. Reason is
// only set on the done update.
type Update struct {
	Status  Status
	Message string
	Reason  Reason
}

// StatusFunc receives the pending placeholder and then the final message.
type StatusFunc func(Update)

// Request carries the input of one study action. Only the field matching the
// action is read.
type Request struct {
	Action       models.Action
	Topic        string
	DocumentPath string
	URL          string
}

var pendingMessages = map[models.Action]string{
	models.ActionExplain:         "⏳ Generating explanation, please wait...",
	models.ActionFlashcards:      "⏳ Generating flashcards...",
	models.ActionFollowUps:       "⏳ Generating follow-up questions...",
	models.ActionDocumentSummary: "⏳ Extracting and summarizing PDF...",
	models.ActionVideoSummary:    "⏳ Fetching and summarizing YouTube video...",
}

// PendingMessage is the placeholder shown while action runs.
func PendingMessage(action models.Action) string {
	if msg, ok := pendingMessages[action]; ok {
		return msg
	}
	return "⏳ Working..."
}

type StudyOptions struct {
	CaptionLanguages []string
	CaptionFallback  bool
}

// StudyService builds prompts from topics, documents and video captions and
// forwards them to the generative backend. Every handler returns a Result and
// never an error.
type StudyService struct {
	backend   Backend
	pdf       *PDFService
	captions  CaptionSource
	languages []string
	fallback  bool
	logger    *slog.Logger
}

func NewStudyService(backend Backend, pdf *PDFService, captions CaptionSource, opts StudyOptions, logger *slog.Logger) *StudyService {
	languages := opts.CaptionLanguages
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StudyService{
		backend:   backend,
		pdf:       pdf,
		captions:  captions,
		languages: languages,
		fallback:  opts.CaptionFallback,
		logger:    logger,
	}
}

// Run notifies pending, handles the request, then notifies done with the
// displayed result.
func (s *StudyService) Run(ctx context.Context, req Request, notify StatusFunc) Result {
	if notify != nil {
		notify(Update{Status: StatusPending, Message: PendingMessage(req.Action)})
	}
	res := s.Handle(ctx, req)
	if notify != nil {
		notify(Update{Status: StatusDone, Message: res.Display(), Reason: res.Reason})
	}
	return res
}

func (s *StudyService) Handle(ctx context.Context, req Request) Result {
	switch req.Action {
	case models.ActionExplain:
		return s.Explain(ctx, req.Topic)
	case models.ActionFlashcards:
		return s.Flashcards(ctx, req.Topic)
	case models.ActionFollowUps:
		return s.FollowUps(ctx, req.Topic)
	case models.ActionDocumentSummary:
		return s.SummarizeDocument(ctx, req.DocumentPath)
	case models.ActionVideoSummary:
		return s.SummarizeVideo(ctx, req.URL)
	default:
		return failure(ReasonBackend, fmt.Errorf("unsupported action %q", req.Action))
	}
}

func (s *StudyService) Explain(ctx context.Context, topic string) Result {
	return s.complete(ctx, ExplainPrompt(topic), ReasonBackend)
}

func (s *StudyService) Flashcards(ctx context.Context, topic string) Result {
	return s.complete(ctx, FlashcardsPrompt(topic), ReasonBackend)
}

func (s *StudyService) FollowUps(ctx context.Context, topic string) Result {
	return s.complete(ctx, FollowUpPrompt(topic), ReasonBackend)
}

// SummarizeDocument summarizes the leading pages of the PDF at path. A
// document without extractable text is reported without calling the backend.
func (s *StudyService) SummarizeDocument(ctx context.Context, path string) (res Result) {
	defer s.recoverAs(&res, ReasonDocument)

	text, err := s.pdf.ExtractText(path)
	if err != nil {
		s.logger.Warn("extract document text", "path", path, "error", err)
		return failure(ReasonDocument, err)
	}
	if strings.TrimSpace(text) == "" {
		return failure(ReasonNoDocumentText, nil)
	}

	return s.complete(ctx, DocumentSummaryPrompt(truncateRunes(text, MaxPromptChars)), ReasonDocument)
}

// SummarizeVideo summarizes the English captions of the video at rawURL.
func (s *StudyService) SummarizeVideo(ctx context.Context, rawURL string) (res Result) {
	defer s.recoverAs(&res, ReasonVideo)

	videoID, ok := VideoID(rawURL)
	if !ok {
		return failure(ReasonInvalidVideoURL, nil)
	}

	tracks, err := s.captions.ListTracks(ctx, videoID)
	if err != nil {
		return s.captionFailure(videoID, err)
	}
	track, err := SelectTrack(tracks, s.languages, s.fallback)
	if err != nil {
		return s.captionFailure(videoID, err)
	}
	segments, err := s.captions.FetchSegments(ctx, track)
	if err != nil {
		return s.captionFailure(videoID, err)
	}

	transcript := JoinSegments(segments)
	if strings.TrimSpace(transcript) == "" {
		return failure(ReasonEmptyTranscript, nil)
	}

	return s.complete(ctx, VideoSummaryPrompt(truncateRunes(transcript, MaxPromptChars)), ReasonVideo)
}

func (s *StudyService) captionFailure(videoID string, err error) Result {
	s.logger.Warn("retrieve captions", "video", videoID, "error", err)
	switch {
	case errors.Is(err, ErrCaptionsDisabled):
		return failure(ReasonCaptionsDisabled, err)
	case errors.Is(err, ErrNoTranscript):
		return failure(ReasonNoEnglishTranscript, err)
	default:
		return failure(ReasonVideo, err)
	}
}

// complete is the backend call wrapper: failures come back as reason.
func (s *StudyService) complete(ctx context.Context, prompt string, reason Reason) (res Result) {
	defer s.recoverAs(&res, reason)

	text, err := s.backend.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("backend call failed", "reason", reason, "error", err)
		return failure(reason, err)
	}
	return textResult(text)
}

func (s *StudyService) recoverAs(res *Result, reason Reason) {
	if r := recover(); r != nil {
		s.logger.Error("study handler panicked", "panic", r)
		*res = failure(reason, fmt.Errorf("%v", r))
	}
}
