// Package config loads runtime configuration for the GophAuth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. GOPHAUTH_CLI_* environment variables.
//  4. Command-line flags, which override everything above.
//
// Supported flags
//
//	-a string   base URL of the HTTP API
//	-t int      request timeout (seconds)
//	-s string   session database file
//
// # JSON schema
//
// Durations accept strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "request_timeout": "10s",
//	  "session_path": "session.db"
//	}
package config
