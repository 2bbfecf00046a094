// Package chat provides the simulated conversation loop with a twin. Replies
// are canned and delivered after a fixed delay; a real model backend would
// slot in behind the same Session surface.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser Role = "user"
	RoleTwin Role = "twin"
)

// ErrSessionClosed is returned by Send after Close.
var ErrSessionClosed = errors.New("chat: session closed")

// SuggestedQuestions seeds an empty conversation with prompts to pick from.
var SuggestedQuestions = []string{
	"What are my core values?",
	"How do I handle stress?",
	"What are my long-term goals?",
	"What makes me unique?",
}

const simulatedReply = "This is a simulated response from your AI twin. " +
	"In production, this would be powered by the actual AI model trained on your data."

// Message is a single conversation entry.
type Message struct {
	ID      string    `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

// Session holds one conversation with a twin. User messages append
// synchronously; replies are produced by a single worker so they always land
// in send order even when several sends are in flight.
type Session struct {
	twinID string
	delay  time.Duration
	now    func() time.Time
	newID  func() string

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan struct{}
	notify chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	messages []Message
	typing   int
	closed   bool
}

// Option customizes a Session during construction.
type Option func(*Session)

// WithClock overrides the message timestamp clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewSession opens a conversation with the given twin. delay is how long the
// twin "thinks" before each reply.
func NewSession(twinID string, delay time.Duration, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		twinID: twinID,
		delay:  delay,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan struct{}, 64),
		notify: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.wg.Add(1)
	go s.replyLoop()
	return s
}

// TwinID returns the twin this session talks to.
func (s *Session) TwinID() string {
	return s.twinID
}

// Send appends the user's message and schedules a reply. Blank input is
// ignored.
func (s *Session) Send(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.messages = append(s.messages, Message{
		ID:      s.newID(),
		Role:    RoleUser,
		Content: content,
		SentAt:  s.now(),
	})
	s.typing++
	s.mu.Unlock()
	s.signal()

	select {
	case s.queue <- struct{}{}:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// Messages returns a snapshot of the conversation so far.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Typing reports whether at least one reply is still pending.
func (s *Session) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing > 0
}

// Updates signals whenever the conversation changes. The channel is a
// level trigger; coalesced signals are fine for redraw purposes.
func (s *Session) Updates() <-chan struct{} {
	return s.notify
}

// Close stops the reply worker. Pending replies are abandoned.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Session) replyLoop() {
	defer s.wg.Done()
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.queue:
		}
		timer.Reset(s.delay)
		select {
		case <-s.ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
		s.mu.Lock()
		s.messages = append(s.messages, Message{
			ID:      s.newID(),
			Role:    RoleTwin,
			Content: simulatedReply,
			SentAt:  s.now(),
		})
		if s.typing > 0 {
			s.typing--
		}
		s.mu.Unlock()
		s.signal()
	}
}

func (s *Session) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
