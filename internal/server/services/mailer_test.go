package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleMailer_SendCode(t *testing.T) {
	var buf bytes.Buffer
	m := NewConsoleMailer(&buf)

	exp := time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)
	require.NoError(t, m.SendCode(context.Background(), "alice@example.com", "123456", exp))

	out := buf.String()
	assert.Contains(t, out, "To: alice@example.com")
	assert.Contains(t, out, "Your OTP code is: 123456.")
	assert.Contains(t, out, "2025-03-01T10:05:00Z")
}
