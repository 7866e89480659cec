// Package client contains client-side building blocks for the GophAuth CLI.
//
// # Overview
//
// The package provides:
//  1. An API contract (see the Client interface) covering sign-up, email
//     verification, login, refresh, profile lookup, logout and password reset.
//  2. An HTTP implementation (see HTTPClient) that maps the server's
//     {"code","message"} error bodies back to the common sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) for the
//     SQLite session file, using embedded goose migrations.
//
// # Error Handling
//
// Transport failures wrap ErrUnavailable. Server rejections are *APIError
// values that unwrap to common errors, so errors.Is(err,
// common.ErrTokenExpired) works across the wire.
package client
