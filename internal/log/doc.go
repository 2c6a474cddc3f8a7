// Package log provides secure logging built on top of the standard slog
// package.
//
// Probing database services means connection strings, passwords and AUTH
// commands can end up in log records, usually inside driver error messages.
// The SecureHandler masks them before they reach the underlying handler:
//   - attributes whose key names a credential (password, requirepass, auth, ...)
//   - values that are entirely a secret (AUTH command lines, bearer tokens, keys)
//   - userinfo embedded in mongodb:// and redis:// URIs, wherever it appears
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("handshake failed",
//	    "uri", "mongodb://admin:hunter2@db:27017", // logged as mongodb://***REDACTED***@db:27017
//	)
//	slog.SetDefault(logger)
package log
