// Package logx configures promptd's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional forward sink (min-level + rate limiting) that copies
//     warnings into the report sink
package logx
