package controller

import (
	"context"
	"sync"

	"github.com/webhelpdesk/helpdesk/internal/model/chat"
	speechmodel "github.com/webhelpdesk/helpdesk/internal/model/speech"
)

type viewCall struct {
	kind  string
	text  string
	flag  bool
	label string
}

type fakeView struct {
	mu       sync.Mutex
	messages []chat.Message
	calls    []viewCall
}

func (v *fakeView) AppendMessage(msg chat.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = append(v.messages, msg)
	v.calls = append(v.calls, viewCall{kind: "message", text: msg.Text})
}

func (v *fakeView) SetInput(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, viewCall{kind: "input", text: text})
}

func (v *fakeView) SetRecording(recording bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, viewCall{kind: "recording", flag: recording})
}

func (v *fakeView) SetVoiceInput(enabled bool, label string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, viewCall{kind: "voice", flag: enabled, label: label})
}

func (v *fakeView) Messages() []chat.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]chat.Message(nil), v.messages...)
}

func (v *fakeView) Calls() []viewCall {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]viewCall(nil), v.calls...)
}

func (v *fakeView) lastRecording() (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.calls) - 1; i >= 0; i-- {
		if v.calls[i].kind == "recording" {
			return v.calls[i].flag, true
		}
	}
	return false, false
}

type fakeAsker struct {
	mu        sync.Mutex
	questions []string
	answer    func(question string) (string, error)
}

func (a *fakeAsker) Ask(_ context.Context, question string) (string, error) {
	a.mu.Lock()
	a.questions = append(a.questions, question)
	answer := a.answer
	a.mu.Unlock()

	if answer == nil {
		return "answer to " + question, nil
	}
	return answer(question)
}

func (a *fakeAsker) Questions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.questions...)
}

type fakeSession struct {
	events  chan speechmodel.RecognitionEvent
	stopped chan struct{}
	once    sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		events:  make(chan speechmodel.RecognitionEvent, 4),
		stopped: make(chan struct{}),
	}
}

func (s *fakeSession) Events() <-chan speechmodel.RecognitionEvent { return s.events }

func (s *fakeSession) Stop() {
	s.once.Do(func() { close(s.stopped) })
}

type fakeRecognizer struct {
	mu       sync.Mutex
	starts   []speechmodel.RecognitionOptions
	sessions []*fakeSession
	err      error
	// hold 在第 n 次 Start 返回前调用（从 1 开始计数），不持锁
	hold func(n int)
}

func (r *fakeRecognizer) Start(_ context.Context, opts speechmodel.RecognitionOptions) (speechmodel.RecognitionSession, error) {
	r.mu.Lock()
	r.starts = append(r.starts, opts)
	n := len(r.starts)
	hold := r.hold
	r.mu.Unlock()

	if hold != nil {
		hold(n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s := newFakeSession()
	r.sessions = append(r.sessions, s)
	return s, nil
}

func (r *fakeRecognizer) Session(i int) *fakeSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[i]
}

func (r *fakeRecognizer) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts)
}

type fakeSynth struct {
	mu      sync.Mutex
	spoken  []string
	locales []string
	cancels int
}

func (s *fakeSynth) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
}

func (s *fakeSynth) Speak(_ context.Context, text, locale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	s.locales = append(s.locales, locale)
	return nil
}

func (s *fakeSynth) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type unavailable struct{ fakeRecognizer }

func (*unavailable) Available() bool { return false }
