package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Janitor periodically deletes ledger rows and one-time codes older than the
// retention period. It only runs when retention is enabled.
type Janitor struct {
	ledger    *RevocationLedger
	otp       *OTPManager
	retention time.Duration
	interval  time.Duration
	logger    logging.Logger
	now       func() time.Time
}

func NewJanitor(ledger *RevocationLedger, otp *OTPManager, retention, interval time.Duration, l logging.Logger, now func() time.Time) *Janitor {
	return &Janitor{
		ledger:    ledger,
		otp:       otp,
		retention: retention,
		interval:  interval,
		logger:    l.With("module", "janitor"),
		now:       clock(now),
	}
}

// Sweep runs one purge pass.
func (j *Janitor) Sweep(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)

	tokens, errTokens := j.ledger.Purge(ctx, cutoff)
	codes, errCodes := j.otp.Purge(ctx, cutoff)
	if err := errors.Join(errTokens, errCodes); err != nil {
		j.logger.Error(ctx, "sweep failed", "error", err)
		return err
	}

	j.logger.Info(ctx, "sweep done", "revoked_tokens", tokens, "codes", codes)
	return nil
}

// Run sweeps every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Sweep(ctx)
		}
	}
}
