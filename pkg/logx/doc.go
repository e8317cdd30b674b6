// Package logx configures sheetcast's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional Telegram sink (min-level + rate limiting)
//
// Status() prints the few operator-facing lines both programs emit
// (startup, schedule confirmation, completion) independently of the log level.
package logx
