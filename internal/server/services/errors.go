package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// taxonomy lists errors that pass through classify unchanged.
var taxonomy = []error{
	common.ErrValidation,
	common.ErrAccountNotFound,
	common.ErrDuplicateUsername,
	common.ErrDuplicateEmail,
	common.ErrInvalidCredentials,
	common.ErrInvalidToken,
	common.ErrTokenExpired,
	common.ErrTokenRevoked,
	common.ErrInvalidCode,
	common.ErrCodeExpired,
	common.ErrTwoFactorAlreadyEnabled,
	common.ErrTwoFactorNotEnabled,
	common.ErrInvalidTwoFactorCode,
	common.ErrStorage,
}

// classify converts repository errors into the service taxonomy. A missing
// row becomes ErrAccountNotFound; anything unrecognised is a storage failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrAccountNotFound
	}
	for _, known := range taxonomy {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", common.ErrStorage, op, err)
}

func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
