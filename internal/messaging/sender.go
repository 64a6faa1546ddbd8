package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/condo-scheduler/internal/config"
)

// Sender delivers an outbound prompt for a case. Fire-and-forget: failures
// are logged by the caller, never retried here; the next scheduled attempt
// subsumes any retry.
type Sender interface {
	SendPrompt(ctx context.Context, caseID, text string) error
}

// LogSender writes prompts to the log, for development and tests.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates the sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendPrompt logs the outbound prompt.
func (s *LogSender) SendPrompt(ctx context.Context, caseID, text string) error {
	s.logger.Info("outbound prompt",
		zap.String("case_id", caseID),
		zap.String("text", text),
	)
	return nil
}

// BridgeSender posts prompts to the WhatsApp bridge, which owns session
// management and phone-number mapping.
type BridgeSender struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewBridgeSender creates the sender.
func NewBridgeSender(cfg config.MessagingConfig, logger *zap.Logger) *BridgeSender {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BridgeSender{
		url:    cfg.BridgeURL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type bridgePayload struct {
	CaseID string `json:"case_id"`
	Text   string `json:"text"`
}

// SendPrompt posts the prompt to the bridge.
func (s *BridgeSender) SendPrompt(ctx context.Context, caseID, text string) error {
	body, err := json.Marshal(bridgePayload{CaseID: caseID, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}
	return nil
}

// NewSenderFromConfig picks the bridge sender when a URL is configured,
// otherwise the log sender.
func NewSenderFromConfig(cfg config.MessagingConfig, logger *zap.Logger) Sender {
	if cfg.BridgeURL != "" {
		return NewBridgeSender(cfg, logger)
	}
	logger.Warn("MESSAGING_BRIDGE_URL not set; prompts will only be logged")
	return NewLogSender(logger)
}
