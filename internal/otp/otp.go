// Package otp generates one-time passcodes and abstracts their delivery.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// Generate returns a uniformly random 6-digit code in [100000, 999999].
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// Sender delivers a generated code to the user. The production channel
// (SMS) does not exist; implementations other than LogSender can be
// swapped in without touching the session manager.
type Sender interface {
	Send(ctx context.Context, identifier, code string) error
}

// LogSender writes the code to the log. Demo delivery only: anyone who
// can read the log can log in.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) Sender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, identifier, code string) error {
	s.log.Info("one-time passcode issued",
		zap.String("identifier", identifier),
		zap.String("code", code),
	)
	return nil
}
