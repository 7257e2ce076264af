package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Messages are the fixed texts returned instead of a model reply.
type Messages struct {
	Apology    string
	NoResponse string
}

// Service keeps one chat session per conversation and serialises questions
// within a conversation so replies come back in request order.
type Service struct {
	factory  SessionFactory
	timeout  time.Duration
	idleTTL  time.Duration
	messages Messages
	logger   *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	conversations map[string]*conversation
}

type conversation struct {
	mu       sync.Mutex
	session  Session
	lastUsed time.Time
}

// NewService creates the assistant service. A non-positive timeout disables
// the per-question deadline.
func NewService(log *slog.Logger, factory SessionFactory, timeout, idleTTL time.Duration, messages Messages) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		factory:       factory,
		timeout:       timeout,
		idleTTL:       idleTTL,
		messages:      messages,
		logger:        log.With(slog.String("service", "assistant")),
		now:           time.Now,
		conversations: map[string]*conversation{},
	}
}

// Ask sends question in the conversation and returns the reply markdown.
// On failure the returned text is the configured fallback message and err
// describes the cause, so callers always have something to send.
func (s *Service) Ask(ctx context.Context, conversationID, question string) (string, error) {
	conv := s.conversation(conversationID)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.lastUsed = s.now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.send(ctx, conv, question)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		s.logger.Error("assistant request failed",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err),
		)
		return s.messages.Apology, err
	}
	if !resp.HasText() {
		s.logger.Warn("assistant returned no text", slog.String("conversation_id", conversationID))
		return s.messages.NoResponse, ErrEmptyResponse
	}
	return resp.Text(), nil
}

func (s *Service) send(ctx context.Context, conv *conversation, question string) (Response, error) {
	if conv.session == nil {
		session, err := s.factory.NewSession(ctx)
		if err != nil {
			return Response{}, err
		}
		conv.session = session
	}
	return conv.session.Send(ctx, question)
}

func (s *Service) conversation(id string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		conv = &conversation{}
		s.conversations[id] = conv
	}
	return conv
}

// PruneIdle forgets sessions unused for longer than the idle TTL and returns
// how many were dropped. Conversations with a question in flight are kept.
func (s *Service) PruneIdle(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, conv := range s.conversations {
		if !conv.mu.TryLock() {
			continue
		}
		if now.Sub(conv.lastUsed) > s.idleTTL {
			delete(s.conversations, id)
			dropped++
		}
		conv.mu.Unlock()
	}
	if dropped > 0 {
		s.logger.Info("pruned idle chat sessions", slog.Int("count", dropped))
	}
	return dropped
}

// Len returns the number of tracked conversations.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}
