// Package codec streams adapted values to and from text.
//
// Encoders walk a value.Value depth first and write as they read, so a
// cursor-backed Sequence is never held in memory. Every closeable Sequence
// and Mapping reached by an encoder is closed exactly once before the
// encoder leaves it, whether the walk succeeds, the sink fails, or the
// source itself fails. Close failures do not stop the walk; Encode reports
// them afterwards as an rpcerr resource error.
//
// Decoders read a character stream in a single pass without buffering the
// whole document:
//
//   - JSONDecoder produces nil, bool, int64, float64, string, []any and
//     map[string]any. It is deliberately forgiving about separators and
//     closing brackets.
//   - CSVDecoder produces a forward-only cursor of records keyed by the
//     header row.
package codec
