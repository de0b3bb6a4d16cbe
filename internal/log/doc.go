// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (JWTs, bearer tokens, key IDs)
//   - Session identifiers and authentication tokens
//
// Retailer configurations carry session cookies so crawls can see
// logged-in category trees. Even in verbose mode those values are
// masked, because crawl logs are routinely shared when debugging
// anti-bot behavior.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("request sent",
//	    "cookie", "session=abc123",  // Will be sanitized to "***REDACTED***"
//	    "url", "https://shop.example/categories",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
