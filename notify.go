package authkit

import (
	"context"
	"strings"
)

// CodeSenderFunc adapts a function into a CodeSender.
type CodeSenderFunc func(ctx context.Context, email, code string) error

// SendResetCode satisfies the CodeSender interface.
func (f CodeSenderFunc) SendResetCode(ctx context.Context, email, code string) error {
	if f == nil {
		return nil
	}
	return f(ctx, email, code)
}

// LogCodeSender is a development sender that logs delivery without ever
// writing the code itself; real deployments plug an email/SMS channel in.
type LogCodeSender struct {
	Logger Logger
}

func (s LogCodeSender) SendResetCode(ctx context.Context, email, code string) error {
	logger := s.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("password reset code dispatched", "to", MaskEmail(email), "digits", len(code))
	return nil
}

// MaskEmail hides most of the local part for log output.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return "***"
	}
	if at <= 1 {
		return "***" + email[at:]
	}
	return email[:1] + "***" + email[at:]
}
