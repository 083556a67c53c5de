// Package evidence manages the shared embedded index of transcript and OCR
// evidence units: SQLite with an FTS5 shadow table, transactional per-asset
// replacement, bm25 retrieval, and citation-carrying evidence packs.
package evidence
