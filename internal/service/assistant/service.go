// Package assistant answers questions about the indexed documents while
// keeping a short conversation history per session.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ragchat/internal/memory"
	"ragchat/internal/models"
	"ragchat/internal/observability"
	"ragchat/internal/worker"
)

var (
	ErrEmptyQuestion = errors.New("question is required")
	ErrEmptySession  = errors.New("session id is required")
)

// ContextRetriever returns the document context for a question.
type ContextRetriever interface {
	Context(ctx context.Context, question string) (string, error)
}

// AnswerGenerator turns a question, its context and the prior turns into a reply.
type AnswerGenerator interface {
	Generate(ctx context.Context, question, retrieved string, history []models.Turn) (string, error)
}

type Config struct {
	Memory    memory.Store
	Retriever ContextRetriever
	Generator AnswerGenerator
	Workers   *worker.Manager
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Service runs the answer flow. Requests on one session are serialized, so a
// follow-up always sees the turns of the question before it.
type Service struct {
	memory    memory.Store
	retriever ContextRetriever
	generator AnswerGenerator
	workers   *worker.Manager
	metrics   *observability.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Memory == nil || cfg.Retriever == nil || cfg.Generator == nil {
		return nil, errors.New("assistant requires memory, retriever and generator")
	}
	if cfg.Workers == nil {
		cfg.Workers = worker.NewManager(worker.Config{Logger: cfg.Logger})
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.Discard()
	}
	return &Service{
		memory:    cfg.Memory,
		retriever: cfg.Retriever,
		generator: cfg.Generator,
		workers:   cfg.Workers,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		tracer:    otel.Tracer(observability.TracerName),
	}, nil
}

// Answer returns the reply to question within sessionID and records both
// turns. On any failure the session history is left untouched.
func (s *Service) Answer(ctx context.Context, sessionID, question string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrEmptySession
	}
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}

	start := time.Now()
	var answer string
	err := s.workers.Do(ctx, sessionID, func(ctx context.Context) error {
		var err error
		answer, err = s.answer(ctx, sessionID, question)
		return err
	})
	s.observe(start, err)
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (s *Service) answer(ctx context.Context, sessionID, question string) (string, error) {
	ctx = observability.WithSessionID(ctx, sessionID)
	ctx, span := s.tracer.Start(ctx, "assistant.Answer", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()
	logger := observability.LoggerFromContext(ctx, s.logger)

	var (
		history   []models.Turn
		retrieved string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.memory.History(gctx, sessionID)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		rctx, rspan := s.tracer.Start(gctx, "assistant.Retrieve")
		defer rspan.End()
		began := time.Now()
		var err error
		retrieved, err = s.retriever.Context(rctx, question)
		if s.metrics != nil {
			s.metrics.RetrievalDuration.Observe(time.Since(began).Seconds())
		}
		if err != nil {
			rspan.RecordError(err)
			return fmt.Errorf("retrieve context: %w", err)
		}
		rspan.SetAttributes(attribute.Int("context.length", len(retrieved)))
		return nil
	})
	if err := g.Wait(); err != nil {
		return s.fail(span, logger, err)
	}

	genCtx, gspan := s.tracer.Start(ctx, "assistant.Generate", trace.WithAttributes(
		attribute.Int("history.turns", len(history)),
	))
	began := time.Now()
	answer, err := s.generator.Generate(genCtx, question, retrieved, history)
	if s.metrics != nil {
		s.metrics.GenerationDuration.Observe(time.Since(began).Seconds())
	}
	if err != nil {
		gspan.RecordError(err)
	}
	gspan.End()
	if err != nil {
		return s.fail(span, logger, err)
	}

	err = s.memory.Append(ctx, sessionID, models.UserTurn(question), models.AssistantTurn(answer))
	if err != nil {
		return s.fail(span, logger, fmt.Errorf("record turns: %w", err))
	}

	logger.Info("answered question",
		"history_turns", len(history),
		"context_length", len(retrieved),
		"answer_length", len(answer),
	)
	return answer, nil
}

func (s *Service) fail(span trace.Span, logger *slog.Logger, err error) (string, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Error("answer failed", "error", err)
	return "", err
}

func (s *Service) observe(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = "timeout"
	case errors.Is(err, worker.ErrQueueFull):
		status = "rejected"
	default:
		status = "error"
	}
	s.metrics.AnswersTotal.WithLabelValues(status).Inc()
	s.metrics.AnswerDuration.Observe(time.Since(start).Seconds())
}

// History returns the recorded turns of sessionID, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]models.Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	turns, err := s.memory.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	return turns, nil
}

// Reset forgets the history of sessionID. It waits behind any answer still
// running on that session.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrEmptySession
	}
	return s.workers.Do(ctx, sessionID, func(ctx context.Context) error {
		if err := s.memory.Clear(ctx, sessionID); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		return nil
	})
}

// Close stops the session workers and releases the memory backend.
func (s *Service) Close() error {
	s.workers.Stop()
	return s.memory.Close()
}
