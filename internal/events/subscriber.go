// Package events feeds grade and config change notifications from NATS into the
// recalculation service.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grade-engine/internal/models"
	"github.com/noah-isme/sma-grade-engine/internal/service"
	"github.com/noah-isme/sma-grade-engine/pkg/config"
)

type recalculator interface {
	OnGradeChanged(ctx context.Context, event models.GradeChangedEvent) (*service.CascadeReport, error)
	OnConfigChanged(ctx context.Context, event models.ConfigChangedEvent) (*service.BatchResult, error)
}

// Subscriber consumes change events with a queue subscription so that each event is
// processed by one engine instance.
type Subscriber struct {
	conn    *nats.Conn
	cfg     config.NATSConfig
	svc     recalculator
	logger  *zap.Logger
	timeout time.Duration
	subs    []*nats.Subscription
}

// NewSubscriber constructs a subscriber. A nil connection makes Start a no-op.
func NewSubscriber(conn *nats.Conn, cfg config.NATSConfig, svc recalculator, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{conn: conn, cfg: cfg, svc: svc, logger: logger, timeout: time.Minute}
}

// Start subscribes to both subjects and drains the subscriptions once ctx is done.
func (s *Subscriber) Start(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	handlers := map[string]nats.MsgHandler{
		s.cfg.GradeSubject:  s.gradeChanged(ctx),
		s.cfg.ConfigSubject: s.configChanged(ctx),
	}
	for subject, handler := range handlers {
		if subject == "" {
			continue
		}
		sub, err := s.conn.QueueSubscribe(subject, s.cfg.QueueGroup, handler)
		if err != nil {
			s.drain()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
		s.logger.Info("subscribed to change events", zap.String("subject", subject), zap.String("queue", s.cfg.QueueGroup))
	}
	go func() {
		<-ctx.Done()
		s.drain()
	}()
	return nil
}

func (s *Subscriber) drain() {
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil {
			s.logger.Warn("failed to drain nats subscription", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	s.subs = nil
}

func (s *Subscriber) gradeChanged(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var event models.GradeChangedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.Warn("dropping malformed grade change event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		msgCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		report, err := s.svc.OnGradeChanged(msgCtx, event)
		if err != nil {
			s.logger.Warn("grade change recalculation failed",
				zap.String("student_id", event.StudentID),
				zap.String("subject_id", event.SubjectID),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("grade change processed", zap.String("student_id", event.StudentID), zap.Int("updated", len(report.Updated)))
	}
}

func (s *Subscriber) configChanged(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var event models.ConfigChangedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.Warn("dropping malformed config change event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		msgCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		batch, err := s.svc.OnConfigChanged(msgCtx, event)
		if err != nil {
			s.logger.Warn("config change recalculation failed", zap.String("class_id", event.ClassID), zap.Error(err))
			return
		}
		if batch.Partial() {
			s.logger.Warn("config change recalculation partially failed", zap.String("class_id", event.ClassID), zap.Int("failures", len(batch.Failures)))
		}
	}
}
