// Package testutil provides test helpers for pmmail2eml tests.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertStrings, etc.)
//   - fs_helpers.go: filesystem operations (WriteFile, ReadFile, MustExist)
//   - archive.go: PMMail archive builders (accounts, folders, messages)
//   - logging.go: captured slog loggers
package testutil
