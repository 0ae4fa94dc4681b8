// Package observability provides the hook's structured logger and reads its
// rotating JSON log back for delivery statistics. Every hook invocation
// appends slog JSON records; statistics are derived on demand from them.
package observability
