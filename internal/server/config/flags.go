package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// serverFlags lists the short flags owned by the server.
//
//	-a string   HTTP bind address (":8080")
//	-g string   gRPC health bind address (":50051")
//	-d string   PostgreSQL DSN
//	-s string   token signing secret
//	-l string   log level
//	-t int      access token lifetime, minutes
//	-r int      refresh token lifetime, minutes
//	-e int      email verification token lifetime, minutes
//	-p int      password reset token lifetime, minutes
//	-o int      one-time password lifetime, minutes
var serverFlags = []string{"-a", "-g", "-d", "-s", "-l", "-t", "-r", "-e", "-p", "-o"}

func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.EndpointAddrHTTP, "a", cfg.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&cfg.EndpointAddrGRPC, "g", cfg.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	flagx.MinutesVar(fs, &cfg.AccessTokenValidityDuration, "t", "access token lifetime (in minutes)")
	flagx.MinutesVar(fs, &cfg.RefreshTokenValidityDuration, "r", "refresh token lifetime (in minutes)")
	flagx.MinutesVar(fs, &cfg.EmailVerificationTokenValidityDuration, "e", "email verification token lifetime (in minutes)")
	flagx.MinutesVar(fs, &cfg.PasswordResetTokenValidityDuration, "p", "password reset token lifetime (in minutes)")
	flagx.MinutesVar(fs, &cfg.OTPValidityDuration, "o", "one-time password lifetime (in minutes)")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
