// Package journal archives applied resolutions as zstd-compressed JSONL.
//
// Each UTC day gets its own file, resolutions-YYYYMMDD.jsonl.zst, holding one
// Entry per line. Files are append-only; reopening a day's file after a
// restart appends a new zstd frame, which ReadAll decodes transparently.
//
// Entries of one day are hash-chained, and signed when the writer has a
// keyring; Verify and VerifyFile detect edited, dropped or reordered lines.
package journal
