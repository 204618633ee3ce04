// Package sms is the out-of-band OTP delivery collaborator. The auth core
// only hands codes to a Sender; how they reach the handset is provider detail.
package sms

import (
	"context"
	"log/slog"
)

// Sender delivers one-time codes to phones.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogSender is a stub implementation that writes deliveries to the logger.
// It stands in for a real SMS provider outside production.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a logging sender stub.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendOTP writes the delivery to the structured logger. The code itself is
// not logged.
func (s *LogSender) SendOTP(_ context.Context, phone, _ string) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("otp delivery", slog.String("phone", phone))
	return nil
}
