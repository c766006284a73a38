package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kkdai/youtube/v2"
)

func TestJoinSegments(t *testing.T) {
	segments := []CaptionSegment{{Text: "Hello"}, {Text: "world"}}
	if got := JoinSegments(segments); got != "Hello world" {
		t.Fatalf("JoinSegments = %q", got)
	}
	if got := JoinSegments(nil); got != "" {
		t.Fatalf("JoinSegments(nil) = %q", got)
	}
}

func TestSelectTrack(t *testing.T) {
	manualEN := CaptionTrack{LanguageCode: "en", BaseURL: "https://x/manual-en"}
	generatedEN := CaptionTrack{LanguageCode: "en", BaseURL: "https://x/asr-en", Generated: true}
	manualDE := CaptionTrack{LanguageCode: "de", BaseURL: "https://x/manual-de?v=1", Translatable: true}

	tests := []struct {
		name     string
		list     TrackList
		fallback bool
		wantURL  string
		wantErr  bool
	}{
		{"manual preferred", TrackList{Manual: []CaptionTrack{manualEN}, Generated: []CaptionTrack{generatedEN}}, true, manualEN.BaseURL, false},
		{"generated with fallback", TrackList{Generated: []CaptionTrack{generatedEN}}, true, generatedEN.BaseURL, false},
		{"generated without fallback", TrackList{Generated: []CaptionTrack{generatedEN}}, false, "", true},
		{"translated with fallback", TrackList{Manual: []CaptionTrack{manualDE}, TranslationLanguages: []string{"en", "fr"}}, true, manualDE.BaseURL + "&tlang=en", false},
		{"translation target missing", TrackList{Manual: []CaptionTrack{manualDE}, TranslationLanguages: []string{"fr"}}, true, "", true},
		{"translation without fallback", TrackList{Manual: []CaptionTrack{manualDE}, TranslationLanguages: []string{"en"}}, false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, err := SelectTrack(&tt.list, []string{"en"}, tt.fallback)
			if tt.wantErr {
				if !errors.Is(err, ErrNoTranscript) {
					t.Fatalf("expected ErrNoTranscript, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if track.BaseURL != tt.wantURL {
				t.Fatalf("BaseURL = %q, want %q", track.BaseURL, tt.wantURL)
			}
		})
	}
}

func TestSelectTrackHonorsLanguageOrder(t *testing.T) {
	list := &TrackList{Manual: []CaptionTrack{
		{LanguageCode: "en", BaseURL: "en"},
		{LanguageCode: "en-GB", BaseURL: "en-GB"},
	}}
	track, err := SelectTrack(list, []string{"en-GB", "en"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if track.LanguageCode != "en-GB" {
		t.Fatalf("picked %q", track.LanguageCode)
	}
}

func TestParseTimedText(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="utf-8" ?><transcript>` +
		`<text start="0.5" dur="1.2">Hello &amp;#39;world&amp;#39;</text>` +
		`<text start="1.7" dur="2">&lt;i&gt;second&lt;/i&gt; line</text>` +
		`</transcript>`)

	segments, err := parseTimedText(body)
	if err != nil {
		t.Fatalf("parseTimedText: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Hello 'world'" || segments[0].Start != 0.5 || segments[0].Duration != 1.2 {
		t.Errorf("unexpected first segment %+v", segments[0])
	}
	if segments[1].Text != "second line" {
		t.Errorf("unexpected second segment %+v", segments[1])
	}
}

func TestParseTimedTextRejectsMalformedXML(t *testing.T) {
	if _, err := parseTimedText([]byte("<transcript><text>")); err == nil {
		t.Fatal("expected error")
	}
}

func youtubeTrack(lang, kind string, translatable bool) youtube.CaptionTrack {
	return youtube.CaptionTrack{
		BaseURL:        "https://www.youtube.com/api/timedtext?v=abcdefghijk&lang=" + lang + "&fmt=srv3",
		LanguageCode:   lang,
		Kind:           kind,
		IsTranslatable: translatable,
	}
}

func TestBuildTrackList(t *testing.T) {
	list, err := buildTrackList("abcdefghijk", []youtube.CaptionTrack{
		youtubeTrack("en", "", true),
		youtubeTrack("en", "asr", true),
		youtubeTrack("de", "", false),
	})
	if err != nil {
		t.Fatalf("buildTrackList: %v", err)
	}
	if len(list.Manual) != 2 || len(list.Generated) != 1 {
		t.Fatalf("unexpected track split %+v", list)
	}
	if !list.Generated[0].Generated || list.Manual[0].Generated {
		t.Fatalf("generated flag not mapped: %+v", list)
	}
	if !list.Manual[0].Translatable || list.Manual[1].Translatable {
		t.Fatalf("translatable flag not mapped: %+v", list)
	}
	for _, track := range append(list.Manual, list.Generated...) {
		if strings.Contains(track.BaseURL, "fmt=srv3") {
			t.Fatalf("format parameter not stripped: %s", track.BaseURL)
		}
	}
}

func TestBuildTrackListWithoutTracks(t *testing.T) {
	if _, err := buildTrackList("abcdefghijk", nil); !errors.Is(err, ErrCaptionsDisabled) {
		t.Fatalf("expected ErrCaptionsDisabled, got %v", err)
	}
}

func TestTranslationWithUnknownTargets(t *testing.T) {
	list, err := buildTrackList("abcdefghijk", []youtube.CaptionTrack{youtubeTrack("es", "asr", true)})
	if err != nil {
		t.Fatalf("buildTrackList: %v", err)
	}
	track, err := SelectTrack(list, []string{"en"}, true)
	if err != nil {
		t.Fatalf("SelectTrack: %v", err)
	}
	if !strings.HasSuffix(track.BaseURL, "&tlang=en") || track.LanguageCode != "en" {
		t.Fatalf("unexpected translated track %+v", track)
	}
}

func TestYouTubeCaptionsListTracks(t *testing.T) {
	yt := NewYouTubeCaptions(quietLogger())

	var requested string
	yt.lookup = func(ctx context.Context, videoID string) (*youtube.Video, error) {
		requested = videoID
		return &youtube.Video{ID: videoID, CaptionTracks: []youtube.CaptionTrack{youtubeTrack("en", "", false)}}, nil
	}
	list, err := yt.ListTracks(context.Background(), "abcdefghijk")
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	if requested != "abcdefghijk" || list.VideoID != "abcdefghijk" || len(list.Manual) != 1 {
		t.Fatalf("unexpected list %+v for %q", list, requested)
	}

	yt.lookup = func(ctx context.Context, videoID string) (*youtube.Video, error) {
		return &youtube.Video{ID: videoID}, nil
	}
	if _, err := yt.ListTracks(context.Background(), "abcdefghijk"); !errors.Is(err, ErrCaptionsDisabled) {
		t.Fatalf("expected ErrCaptionsDisabled, got %v", err)
	}

	yt.lookup = func(ctx context.Context, videoID string) (*youtube.Video, error) {
		return nil, errors.New("login required")
	}
	_, err = yt.ListTracks(context.Background(), "abcdefghijk")
	if !errors.Is(err, ErrVideoUnavailable) || !strings.Contains(err.Error(), "login required") {
		t.Fatalf("expected wrapped ErrVideoUnavailable, got %v", err)
	}
}

func TestYouTubeCaptionsFetchSegments(t *testing.T) {
	var sawFormat atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fmt") != "" {
			sawFormat.Store(true)
		}
		fmt.Fprint(w, `<transcript><text start="0" dur="1">first</text><text start="1" dur="1">it&amp;#39;s second</text></transcript>`)
	}))
	defer srv.Close()

	list, err := buildTrackList("abcdefghijk", []youtube.CaptionTrack{{
		BaseURL:      srv.URL + "/api/timedtext?v=abcdefghijk&lang=en&fmt=srv3",
		LanguageCode: "en",
	}})
	if err != nil {
		t.Fatalf("buildTrackList: %v", err)
	}

	segments, err := NewYouTubeCaptions(quietLogger()).FetchSegments(context.Background(), list.Manual[0])
	if err != nil {
		t.Fatalf("FetchSegments: %v", err)
	}
	if got := JoinSegments(segments); got != "first it's second" {
		t.Fatalf("transcript = %q", got)
	}
	if sawFormat.Load() {
		t.Fatal("timedtext request carried a format parameter")
	}
}

func TestYouTubeCaptionsFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   string
	}{
		{"rate limited", http.StatusTooManyRequests, "rate limited"},
		{"server error", http.StatusInternalServerError, "status=500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewYouTubeCaptions(quietLogger()).FetchSegments(context.Background(), CaptionTrack{BaseURL: srv.URL + "/api/timedtext?v=x"})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q error, got %v", tt.want, err)
			}
		})
	}
}

func TestYouTubeCaptionsEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	segments, err := NewYouTubeCaptions(quietLogger()).FetchSegments(context.Background(), CaptionTrack{BaseURL: srv.URL})
	if err != nil || len(segments) != 0 {
		t.Fatalf("expected no segments, got %v (%v)", segments, err)
	}
}
