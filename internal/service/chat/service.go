package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/webhelpdesk/helpdesk/internal/model/chat"
	"github.com/webhelpdesk/helpdesk/internal/observability"
)

var ErrSessionNotFound = errors.New("session not found")

// Session 一个浏览器或终端连接对应的会话。
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	transcript *chat.Transcript
}

// Transcript 返回会话的消息记录。
func (s Session) Transcript() *chat.Transcript {
	return s.transcript
}

// Service 管理进程内的会话，关闭连接后会话即被丢弃。
type Service struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewService bootstraps the in-memory session registry.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]Session),
	}
}

// CreateSession 创建新会话并分配空的消息记录。
func (s *Service) CreateSession(_ context.Context) (Session, error) {
	session := Session{
		ID:         observability.NewSessionID(),
		CreatedAt:  time.Now().UTC(),
		transcript: chat.NewTranscript(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	observability.SessionOpened()
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns a copy of the messages rendered in the session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.transcript.Messages(), nil
}

// CloseSession 删除会话。
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	observability.SessionClosed()
	return nil
}

// Count 当前会话数。
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
