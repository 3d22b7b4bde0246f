// Package shared holds helpers used by more than one package.
//
// The testutil subpackage provides a log-capturing slog handler and the
// specimen fixtures used by the dataprocessing, services and HTTP tests.
package shared
