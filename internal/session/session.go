// Package session drives the tool-calling conversation loop.
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cartscope/cartscope/internal/catalog"
	"github.com/cartscope/cartscope/internal/dispatch"
	"github.com/cartscope/cartscope/internal/domain"
	"github.com/cartscope/cartscope/internal/llm"
)

// State is the session's position in the turn loop.
type State int32

const (
	StateIdle State = iota
	StateThinking
	StateDispatching
	StateResponding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateThinking:
		return "thinking"
	case StateDispatching:
		return "dispatching"
	case StateResponding:
		return "responding"
	default:
		return "unknown"
	}
}

// Session owns one conversation: its history, the completion client, and the
// dispatcher. Ask is synchronous; one question is processed at a time.
type Session struct {
	id         string
	llm        llm.Completer
	catalog    *catalog.Catalog
	dispatcher *dispatch.Dispatcher
	history    *History
	maxRounds  int

	mu    sync.Mutex
	state atomic.Int32
}

// New creates a session with an empty history. maxRounds bounds the tool-use
// loop per question.
func New(completer llm.Completer, cat *catalog.Catalog, dispatcher *dispatch.Dispatcher, maxRounds int) *Session {
	return &Session{
		id:         "sess_" + uuid.New().String()[:8],
		llm:        completer,
		catalog:    cat,
		dispatcher: dispatcher,
		history:    NewHistory(),
		maxRounds:  maxRounds,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State reports where the session is in the turn loop. Cancellation from
// outside is safe only while the state is idle.
func (s *Session) State() State {
	return State(s.state.Load())
}

// History returns a snapshot of the conversation log.
func (s *Session) History() []domain.Message {
	return s.history.Snapshot()
}

// Ask appends the question, runs the turn loop until the model stops
// requesting tools, and returns the final text. A failed cycle returns an
// error (*domain.UpstreamError or domain.ErrProtocolLimit) and leaves the
// session usable for the next question; the history never contains a
// half-appended tool turn.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.state.Store(int32(StateIdle))

	s.history.Append(domain.UserText(question))

	rounds := 0
	for {
		s.state.Store(int32(StateThinking))
		outcome, err := s.llm.Complete(ctx, s.history.Snapshot(), s.catalog.All())
		if err != nil {
			return "", err
		}

		if outcome.StopReason == domain.StopToolUse {
			rounds++
			if rounds > s.maxRounds {
				log.Printf("WARN: session %s: aborting after %d tool rounds", s.id, s.maxRounds)
				return "", domain.ErrProtocolLimit
			}

			uses := outcome.ToolUses()
			log.Printf("session %s: tool round %d, %d tool call(s)", s.id, rounds, len(uses))

			s.state.Store(int32(StateDispatching))
			results := s.dispatcher.Run(ctx, uses)

			// The assistant's tool-use message and its matching result
			// message land in one append, so the alternation invariant
			// holds at every observable point.
			s.history.Append(
				domain.Message{Role: domain.RoleAssistant, Content: outcome.Content},
				domain.Message{Role: domain.RoleUser, Content: results},
			)
			continue
		}

		s.state.Store(int32(StateResponding))
		s.history.Append(domain.Message{Role: domain.RoleAssistant, Content: outcome.Content})

		text := outcome.Text()
		if text == "" {
			text = "No response generated"
		}
		return text, nil
	}
}
