package services

import (
	"context"
	"io"
	"sync"
)

type fakeBackend struct {
	mu        sync.Mutex
	prompts   []string
	reply     string
	err       error
	panicWith any
}

func (f *fakeBackend) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeBackend) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type fakePages struct {
	texts  []string
	errs   map[int]error
	opened []int
}

func (p *fakePages) NumPage() int {
	return len(p.texts)
}

func (p *fakePages) PageText(n int) (string, error) {
	p.opened = append(p.opened, n)
	if err := p.errs[n]; err != nil {
		return "", err
	}
	return p.texts[n-1], nil
}

func pdfServiceWith(pages *fakePages, openErr error) *PDFService {
	return &PDFService{open: func(string) (PageSource, io.Closer, error) {
		if openErr != nil {
			return nil, nil, openErr
		}
		return pages, nil, nil
	}}
}

type fakeCaptions struct {
	list     *TrackList
	listErr  error
	segments []CaptionSegment
	fetchErr error
	listed   []string
	fetched  []CaptionTrack
}

func (f *fakeCaptions) ListTracks(ctx context.Context, videoID string) (*TrackList, error) {
	f.listed = append(f.listed, videoID)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeCaptions) FetchSegments(ctx context.Context, track CaptionTrack) ([]CaptionSegment, error) {
	f.fetched = append(f.fetched, track)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.segments, nil
}
