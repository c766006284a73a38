package services

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
)

var (
	// ErrCaptionsDisabled is returned when a video exposes no caption tracks at all.
	ErrCaptionsDisabled = errors.New("captions are disabled for this video")
	// ErrNoTranscript is returned when no track matches the requested languages.
	ErrNoTranscript = errors.New("no transcript found for the requested languages")
	// ErrVideoUnavailable is returned when the video cannot be played or looked up.
	ErrVideoUnavailable = errors.New("video is unavailable")
)

// CaptionSegment is one timed piece of caption text.
type CaptionSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// CaptionTrack describes an available caption track for one language.
type CaptionTrack struct {
	LanguageCode string
	Language     string
	BaseURL      string
	Generated    bool
	Translatable bool
}

// TranslateTo returns a track that fetches this track machine-translated into lang.
func (t CaptionTrack) TranslateTo(lang string) CaptionTrack {
	translated := t
	translated.LanguageCode = lang
	translated.Language = t.Language + " (translated)"
	translated.BaseURL = t.BaseURL + "&tlang=" + url.QueryEscape(lang)
	translated.Translatable = false
	return translated
}

// TrackList holds the caption tracks of one video split by origin.
type TrackList struct {
	VideoID              string
	Manual               []CaptionTrack
	Generated            []CaptionTrack
	// TranslationLanguages restricts translation targets when known.
	TranslationLanguages []string
}

// FindManual returns the first manually authored track in preference order.
func (l *TrackList) FindManual(languages []string) (CaptionTrack, error) {
	return findTrack(l.Manual, languages)
}

// FindGenerated returns the first auto-generated track in preference order.
func (l *TrackList) FindGenerated(languages []string) (CaptionTrack, error) {
	return findTrack(l.Generated, languages)
}

// FindTranslation returns a translatable track translated into the first
// preferred language the video offers as a translation target.
func (l *TrackList) FindTranslation(languages []string) (CaptionTrack, error) {
	for _, lang := range languages {
		if !l.canTranslateTo(lang) {
			continue
		}
		for _, group := range [][]CaptionTrack{l.Manual, l.Generated} {
			for _, track := range group {
				if track.Translatable {
					return track.TranslateTo(lang), nil
				}
			}
		}
	}
	return CaptionTrack{}, fmt.Errorf("translate to %v: %w", languages, ErrNoTranscript)
}

// canTranslateTo treats an empty target list as unknown: the player client
// does not report translation targets, and YouTube offers English for every
// translatable track.
func (l *TrackList) canTranslateTo(lang string) bool {
	if len(l.TranslationLanguages) == 0 {
		return true
	}
	for _, code := range l.TranslationLanguages {
		if code == lang {
			return true
		}
	}
	return false
}

func findTrack(tracks []CaptionTrack, languages []string) (CaptionTrack, error) {
	for _, lang := range languages {
		for _, track := range tracks {
			if track.LanguageCode == lang {
				return track, nil
			}
		}
	}
	return CaptionTrack{}, fmt.Errorf("languages %v: %w", languages, ErrNoTranscript)
}

// SelectTrack picks the caption track to summarize. With fallback disabled
// only manually authored tracks are considered. With fallback enabled the
// lookup continues with auto-generated tracks and then translated tracks.
func SelectTrack(list *TrackList, languages []string, fallback bool) (CaptionTrack, error) {
	track, err := list.FindManual(languages)
	if err == nil || !fallback {
		return track, err
	}
	if track, err = list.FindGenerated(languages); err == nil {
		return track, nil
	}
	return list.FindTranslation(languages)
}

// JoinSegments concatenates segment texts with single spaces.
func JoinSegments(segments []CaptionSegment) string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	return strings.Join(texts, " ")
}

// CaptionSource lists and fetches caption tracks for a video.
type CaptionSource interface {
	ListTracks(ctx context.Context, videoID string) (*TrackList, error)
	FetchSegments(ctx context.Context, track CaptionTrack) ([]CaptionSegment, error)
}

const (
	youtubeAcceptLang    = "en-US"
	youtubeFetchTimeout  = 30 * time.Second
	maxYouTubeBodyBytes  = 8 << 20
	srv3FormatQueryParam = "&fmt=srv3"
)

// YouTubeCaptions lists caption tracks through the kkdai/youtube player client
// and downloads the timed-text XML of the chosen track.
type YouTubeCaptions struct {
	httpClient *http.Client
	lookup     func(ctx context.Context, videoID string) (*youtube.Video, error)
	logger     *slog.Logger
}

func NewYouTubeCaptions(logger *slog.Logger) *YouTubeCaptions {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: youtubeFetchTimeout}
	client := &youtube.Client{HTTPClient: httpClient}
	return &YouTubeCaptions{
		httpClient: httpClient,
		lookup:     client.GetVideoContext,
		logger:     logger,
	}
}

// ListTracks implements CaptionSource
func (c *YouTubeCaptions) ListTracks(ctx context.Context, videoID string) (*TrackList, error) {
	video, err := c.lookup(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("lookup video %s: %w: %v", videoID, ErrVideoUnavailable, err)
	}
	return buildTrackList(videoID, video.CaptionTracks)
}

// buildTrackList splits the player's caption tracks into manual and
// auto-generated ("asr") tracks.
func buildTrackList(videoID string, tracks []youtube.CaptionTrack) (*TrackList, error) {
	if len(tracks) == 0 {
		return nil, ErrCaptionsDisabled
	}

	list := &TrackList{VideoID: videoID}
	for _, raw := range tracks {
		track := CaptionTrack{
			LanguageCode: raw.LanguageCode,
			Language:     raw.LanguageCode,
			BaseURL:      strings.Replace(raw.BaseURL, srv3FormatQueryParam, "", 1),
			Generated:    raw.Kind == "asr",
			Translatable: raw.IsTranslatable,
		}
		if track.Generated {
			list.Generated = append(list.Generated, track)
		} else {
			list.Manual = append(list.Manual, track)
		}
	}
	return list, nil
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Inner string `xml:",innerxml"`
	} `xml:"text"`
}

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// FetchSegments implements CaptionSource
func (c *YouTubeCaptions) FetchSegments(ctx context.Context, track CaptionTrack) ([]CaptionSegment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create timedtext request: %w", err)
	}
	req.Header.Set("Accept-Language", youtubeAcceptLang)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	segments, err := parseTimedText(body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched captions", "language", track.LanguageCode, "generated", track.Generated, "segments", len(segments))
	return segments, nil
}

func parseTimedText(body []byte) ([]CaptionSegment, error) {
	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal timedtext: %w", err)
	}

	segments := make([]CaptionSegment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		// innerxml keeps the XML escaping; captions are HTML-escaped a second time.
		text := html.UnescapeString(t.Inner)
		text = markupPattern.ReplaceAllString(text, "")
		text = html.UnescapeString(text)
		start, _ := strconv.ParseFloat(t.Start, 64)
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		segments = append(segments, CaptionSegment{
			Text:     text,
			Start:    start,
			Duration: dur,
		})
	}
	return segments, nil
}

func (c *YouTubeCaptions) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxYouTubeBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.New("youtube rate limited the request")
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("youtube error: status=%d", resp.StatusCode)
	}
	return body, nil
}
