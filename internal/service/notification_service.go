package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/condo-scheduler/internal/config"
	"github.com/spec-kit/condo-scheduler/internal/events"
)

// NotificationService surfaces scheduling events to operators. Terminal
// outcomes are always observable transitions; nothing closes silently.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.MessagingConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.MessagingConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to scheduling events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventCaseScheduled, n.handleCaseScheduled)
	n.dispatcher.Subscribe(events.EventVisitCompleted, n.handleLogged("VisitCompleted"))
	n.dispatcher.Subscribe(events.EventFollowUpStarted, n.handleLogged("FollowUpStarted"))
	n.dispatcher.Subscribe(events.EventReminderSent, n.handleLogged("ReminderSent"))
	n.dispatcher.Subscribe(events.EventCaseResolved, n.handleLogged("CaseResolved"))
	n.dispatcher.Subscribe(events.EventCaseReopened, n.handleCaseReopened)
	n.dispatcher.Subscribe(events.EventCaseClosedNoResponse, n.handleLogged("CaseClosedNoResponse"))
}

func (n *NotificationService) handleCaseScheduled(ctx context.Context, event events.Event) error {
	n.logger.Info("CaseScheduled", zap.String("case_id", event.CaseID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.CaseScheduledPayload); ok && payload.AwaitingTechnician {
		// Degraded assignment: operators need to staff this slot.
		n.logger.Warn("case awaiting technician", zap.String("case_id", event.CaseID))
	}
	return nil
}

func (n *NotificationService) handleCaseReopened(ctx context.Context, event events.Event) error {
	n.logger.Warn("CaseReopened", zap.String("case_id", event.CaseID), zap.Any("payload", event.Payload))
	n.sendBridgeNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleLogged(name string) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		n.logger.Info(name, zap.String("case_id", event.CaseID), zap.Any("payload", event.Payload))
		return nil
	}
}

func (n *NotificationService) sendBridgeNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.BridgeURL) == "" {
		return
	}
	n.logger.Debug("sendBridgeNotificationStub",
		zap.String("url", n.cfg.BridgeURL),
		zap.String("case_id", event.CaseID),
		zap.String("event_type", string(event.Type)))
}
