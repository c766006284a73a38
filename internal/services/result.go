package services

import "fmt"

// Reason classifies why a study handler did not produce backend text.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInvalidVideoURL
	ReasonNoDocumentText
	ReasonCaptionsDisabled
	ReasonNoEnglishTranscript
	ReasonEmptyTranscript
	ReasonBackend
	ReasonDocument
	ReasonVideo
)

var reasonNames = map[Reason]string{
	ReasonNone:                "",
	ReasonInvalidVideoURL:     "invalid_video_url",
	ReasonNoDocumentText:      "no_document_text",
	ReasonCaptionsDisabled:    "captions_disabled",
	ReasonNoEnglishTranscript: "no_english_transcript",
	ReasonEmptyTranscript:     "empty_transcript",
	ReasonBackend:             "backend_error",
	ReasonDocument:            "document_error",
	ReasonVideo:               "video_error",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Result is the outcome of one study handler. Exactly one of Text or Reason
// is meaningful; Err keeps the cause for reasons that wrap an error.
type Result struct {
	Text   string
	Reason Reason
	Err    error
}

func textResult(text string) Result {
	return Result{Text: text}
}

func failure(reason Reason, err error) Result {
	return Result{Reason: reason, Err: err}
}

// OK reports whether the backend produced the text.
func (r Result) OK() bool {
	return r.Reason == ReasonNone
}

// Display renders the result as the markdown shown to the user.
func (r Result) Display() string {
	switch r.Reason {
	case ReasonNone:
		return r.Text
	case ReasonInvalidVideoURL:
		return "❌ Invalid YouTube URL."
	case ReasonNoDocumentText:
		return "❌ Could not extract text from the PDF."
	case ReasonCaptionsDisabled:
		return "❌ Transcripts are disabled for this video."
	case ReasonNoEnglishTranscript:
		return "❌ No English transcript available for this video."
	case ReasonEmptyTranscript:
		return "❌ Transcript is empty."
	case ReasonDocument:
		return "Error reading PDF: " + r.cause()
	case ReasonVideo:
		return "❌ Error summarizing video: " + r.cause()
	default:
		return "Error: " + r.cause()
	}
}

func (r Result) cause() string {
	if r.Err == nil {
		return "unknown error"
	}
	return r.Err.Error()
}
