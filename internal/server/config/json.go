package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Lifetimes use timex.Duration so
// both "15m" and integer nanoseconds are accepted. Pointer fields distinguish
// "absent" from "zero" so a partial file only overrides what it names.
type JsonConfig struct {
	EndpointAddrHTTP                       *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC                       *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                            *string         `json:"database_dsn"`
	SecretKey                              *string         `json:"secret_key"`
	SigningAlgorithm                       *string         `json:"signing_algorithm"`
	AccessTokenValidityDuration            *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration           *timex.Duration `json:"refresh_token_validity_duration"`
	EmailVerificationTokenValidityDuration *timex.Duration `json:"email_verification_token_validity_duration"`
	PasswordResetTokenValidityDuration     *timex.Duration `json:"password_reset_token_validity_duration"`
	OTPValidityDuration                    *timex.Duration `json:"otp_validity_duration"`
	TOTPIssuer                             *string         `json:"totp_issuer"`
	TOTPSkew                               *int            `json:"totp_skew"`
	BcryptCost                             *int            `json:"bcrypt_cost"`
	LogLevel                               *string         `json:"log_level"`
	LedgerRetention                        *timex.Duration `json:"ledger_retention"`
	JanitorInterval                        *timex.Duration `json:"janitor_interval"`
}

// parseJson overlays values from the file named by -c/-config, if any.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&cfg.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.SecretKey, c.SecretKey)
	setString(&cfg.SigningAlgorithm, c.SigningAlgorithm)
	setString(&cfg.TOTPIssuer, c.TOTPIssuer)
	setString(&cfg.LogLevel, c.LogLevel)
	setInt(&cfg.TOTPSkew, c.TOTPSkew)
	setInt(&cfg.BcryptCost, c.BcryptCost)
	setDuration(&cfg.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&cfg.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&cfg.EmailVerificationTokenValidityDuration, c.EmailVerificationTokenValidityDuration)
	setDuration(&cfg.PasswordResetTokenValidityDuration, c.PasswordResetTokenValidityDuration)
	setDuration(&cfg.OTPValidityDuration, c.OTPValidityDuration)
	setDuration(&cfg.LedgerRetention, c.LedgerRetention)
	setDuration(&cfg.JanitorInterval, c.JanitorInterval)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
