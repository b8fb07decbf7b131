package notify

import (
	"context"

	"github.com/rs/zerolog"

	"flipside/internal/pkg/logx"
)

// LogSender writes messages to the log instead of delivering them. Development only.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: logx.Component("notify")}
}

func (s *LogSender) Send(_ context.Context, address, text string) error {
	s.logger.Info().
		Str("address", address).
		Str("text", text).
		Msg("Message not delivered, logged instead")
	return nil
}
