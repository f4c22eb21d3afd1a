package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mkiradani/daotomata-hotel-agent/internal/port/hotelstore"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/llm"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/platform"
)

// fakeLLM returns canned completions, optionally per-call. delay applies
// to the first call only unless delayAll is set.
type fakeLLM struct {
	mu       sync.Mutex
	answers  []string
	answer   string
	err      error
	delay    time.Duration
	delayAll bool
	calls    int
}

func (f *fakeLLM) Complete(ctx context.Context, _ llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 && (call == 0 || f.delayAll) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) > 0 {
		a := f.answers[0]
		if len(f.answers) > 1 {
			f.answers = f.answers[1:]
		}
		return a, nil
	}
	return f.answer, nil
}

// fakeAssessor is a deterministic self-assessment double.
type fakeAssessor struct {
	score   float64
	reasons []string
	err     error
}

func (f *fakeAssessor) Assess(context.Context, string, string, string) (float64, []string, error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	return f.score, f.reasons, nil
}

// fakePlatform records every outbound call in order.
type fakePlatform struct {
	mu          sync.Mutex
	sent        []string
	notes       []string
	statusCalls []string
	status      platform.ConversationStatus
	sendErr     error
	statusErr   error
	noteErr     error
	getErr      error
}

func (f *fakePlatform) SendMessage(_ context.Context, _ string, _ int, content string) (*platform.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, content)
	return &platform.SendResult{MessageID: len(f.sent)}, nil
}

func (f *fakePlatform) SendPrivateNote(_ context.Context, _ string, _ int, content string) (*platform.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noteErr != nil {
		return nil, f.noteErr
	}
	f.notes = append(f.notes, content)
	return &platform.SendResult{MessageID: len(f.notes)}, nil
}

func (f *fakePlatform) SetStatus(_ context.Context, _ string, _ int, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusCalls = append(f.statusCalls, status)
	return nil
}

func (f *fakePlatform) GetStatus(context.Context, string, int) (*platform.ConversationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s := f.status
	return &s, nil
}

func (f *fakePlatform) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakePlatform) statusRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statusCalls...)
}

func (f *fakePlatform) privateNotes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notes...)
}

// fakeHotels serves a single hotel context.
type fakeHotels struct {
	hctx    *hotelstore.HotelContext
	err     error
	toolErr error
}

func (f *fakeHotels) GetHotelContext(context.Context, string) (*hotelstore.HotelContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.hctx == nil {
		return nil, errors.New("no hotel")
	}
	return f.hctx, nil
}

func (f *fakeHotels) GetHotelInfo(context.Context, string) (string, error) {
	if f.toolErr != nil {
		return "", f.toolErr
	}
	return "A seaside boutique hotel.", nil
}

func (f *fakeHotels) GetActivities(context.Context, string) (string, error) {
	if f.toolErr != nil {
		return "", f.toolErr
	}
	return "Yoga at 8am, wine tasting at 6pm.", nil
}

func (f *fakeHotels) GetFacilities(context.Context, string) (string, error) {
	if f.toolErr != nil {
		return "", f.toolErr
	}
	return "Pool, gym, spa.", nil
}
