package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// ConsoleMailer writes codes to w instead of sending mail. It stands in for
// a real delivery channel in development.
type ConsoleMailer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleMailer(w io.Writer) *ConsoleMailer {
	return &ConsoleMailer{w: w}
}

func (m *ConsoleMailer) SendCode(_ context.Context, email, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := fmt.Fprintf(m.w, "To: %s\nSubject: Your OTP Code\n\nYour OTP code is: %s. It expires at %s.\n\n",
		email, code, expiresAt.UTC().Format(time.RFC3339))
	return err
}
