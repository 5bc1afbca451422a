package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/hackjutsu/mini-chatbot/internal/ollama"
	"github.com/hackjutsu/mini-chatbot/internal/store"

	"go.uber.org/zap"
)

const (
	FrameDelta = "delta"
	FrameError = "error"
	FrameDone  = "done"
)

const (
	failedToContactMessage   = "Failed to contact Ollama"
	streamInterruptedMessage = "Ollama stream interrupted"
	readBufferSize           = 32 * 1024
)

type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

func DeltaFrame(content string) Frame {
	return Frame{Type: FrameDelta, Content: content}
}

func ErrorFrame(message string) Frame {
	return Frame{Type: FrameError, Message: message}
}

func DoneFrame() Frame {
	return Frame{Type: FrameDone}
}

// Sink receives the client stream. Open commits the streaming response;
// Fail reports a failure that happened before Open.
type Sink interface {
	Open() error
	Send(frame Frame) error
	Fail(message string) error
}

type Upstream interface {
	OpenChatStream(ctx context.Context, model string, messages []ollama.Message) (io.ReadCloser, error)
}

type MessageWriter interface {
	CreateMessage(ctx context.Context, sessionID string, role store.Role, content string) (store.Message, error)
}

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeOpenFailed
	OutcomeUpstreamError
	OutcomeReadFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeOpenFailed:
		return "open_failed"
	case OutcomeUpstreamError:
		return "upstream_error"
	case OutcomeReadFailed:
		return "read_failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type RelayRequest struct {
	SessionID string
	UserID    string
	Model     string
	Turns     []ollama.Message
}

type RelayResult struct {
	Outcome   Outcome
	Deltas    int
	Assistant string
	Persisted bool
}

// Relay streams one upstream chat into a Sink and stores the finished
// assistant reply. Partial replies are never stored.
type Relay struct {
	upstream Upstream
	messages MessageWriter
	logger   *zap.Logger
}

func NewRelay(upstream Upstream, messages MessageWriter, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{upstream: upstream, messages: messages, logger: logger}
}

func (r *Relay) Run(ctx context.Context, req RelayRequest, coordinator *AbortCoordinator, sink Sink) RelayResult {
	logger := r.logger.With(
		zap.String("sessionId", req.SessionID),
		zap.String("userId", req.UserID),
		zap.String("model", req.Model),
	)
	started := time.Now()

	body, err := r.upstream.OpenChatStream(coordinator.Context(), req.Model, req.Turns)
	if err != nil {
		if coordinator.ClientGone() {
			logger.Warn("client connection closed before upstream responded")
			return RelayResult{Outcome: OutcomeCancelled}
		}
		coordinator.Fire(CauseUpstream)
		logger.Error("ollama request failed", zap.Error(err))
		if failErr := sink.Fail(failedToContactMessage); failErr != nil {
			logger.Debug("write failure response", zap.Error(failErr))
		}
		return RelayResult{Outcome: OutcomeOpenFailed}
	}
	defer body.Close()

	if err := sink.Open(); err != nil {
		coordinator.Fire(CauseResponseClosed)
		logger.Warn("client stream could not be opened", zap.Error(err))
		return RelayResult{Outcome: OutcomeCancelled}
	}

	var (
		result      RelayResult
		accumulated strings.Builder
	)
	send := func(frame Frame) bool {
		if err := sink.Send(frame); err != nil {
			coordinator.Fire(CauseResponseClosed)
			return false
		}
		return true
	}
	cancelled := func() RelayResult {
		logger.Warn("client connection closed before response finished",
			zap.String("cause", coordinator.Cause().String()),
			zap.Int("deltas", result.Deltas),
		)
		return RelayResult{Outcome: OutcomeCancelled, Deltas: result.Deltas}
	}
	// apply returns false once the stream must stop.
	apply := func(frames []UpstreamFrame) (Outcome, bool) {
		for _, frame := range frames {
			switch frame.Kind {
			case KindDelta:
				accumulated.WriteString(frame.Text)
				result.Deltas++
				if !send(DeltaFrame(frame.Text)) {
					return OutcomeCancelled, false
				}
			case KindError:
				coordinator.Fire(CauseUpstream)
				logger.Error("ollama reported an error", zap.String("message", frame.Text))
				if !send(ErrorFrame(frame.Text)) {
					return OutcomeCancelled, false
				}
				return OutcomeUpstreamError, false
			}
		}
		return OutcomeCompleted, true
	}

	decoder := NewDecoder(logger)
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if outcome, ok := apply(decoder.Feed(buf[:n])); !ok {
				if outcome == OutcomeCancelled {
					return cancelled()
				}
				return RelayResult{Outcome: outcome, Deltas: result.Deltas}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if coordinator.ClientGone() {
				return cancelled()
			}
			coordinator.Fire(CauseUpstream)
			logger.Error("ollama stream read failed", zap.Error(readErr))
			if !send(ErrorFrame(streamInterruptedMessage)) {
				return cancelled()
			}
			return RelayResult{Outcome: OutcomeReadFailed, Deltas: result.Deltas}
		}
	}

	if outcome, ok := apply(decoder.Flush()); !ok {
		if outcome == OutcomeCancelled {
			return cancelled()
		}
		return RelayResult{Outcome: outcome, Deltas: result.Deltas}
	}
	// A buffered write can succeed after the client left; check both sides
	// of the done frame before storing the reply.
	clientGone := func() bool {
		if ctx.Err() != nil {
			coordinator.Fire(CauseClientGone)
		}
		return coordinator.ClientGone()
	}
	if clientGone() || !send(DoneFrame()) || clientGone() {
		return cancelled()
	}

	result.Outcome = OutcomeCompleted
	result.Assistant = accumulated.String()
	if strings.TrimSpace(result.Assistant) != "" {
		if _, err := r.messages.CreateMessage(context.WithoutCancel(ctx), req.SessionID, store.RoleAssistant, result.Assistant); err != nil {
			logger.Error("persist assistant message failed", zap.Error(err))
		} else {
			result.Persisted = true
		}
	}
	logger.Info("chat stream completed",
		zap.Int("deltas", result.Deltas),
		zap.Int("chars", len(result.Assistant)),
		zap.Bool("persisted", result.Persisted),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result
}
