package evidence

import (
	"context"
	"fmt"
	"strings"

	"assetizer/internal/services"
	"assetizer/internal/textutil"
)

// Hit is one search result, relevance-ordered.
type Hit struct {
	UnitID    int64   `json:"unit_id"`
	Kind      string  `json:"kind"`
	SourceRef string  `json:"source_ref"`
	StartMs   int64   `json:"start_ms"`
	EndMs     *int64  `json:"end_ms,omitempty"`
	Text      string  `json:"text"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
	Citation  string  `json:"citation"`
}

const snippetLength = 160

// Search runs an FTS5 bm25 query over one asset's evidence. Results come
// back best-first; equal scores break on rowid so reruns are stable. No
// matches is an empty slice, not an error.
func (s *Store) Search(ctx context.Context, assetID, query string, topK int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "query", "search", "empty query", nil)
	}
	match := escapeFTSQuery(query)
	if match == "" {
		return nil, services.Wrap(services.ErrValidation, "query", "search", "query has no searchable terms", nil)
	}
	if topK <= 0 {
		topK = 8
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT e.id, e.kind, e.source_ref, e.start_ms, e.end_ms, e.text,
               bm25(evidence_fts) AS score
        FROM evidence_fts
        JOIN evidence e ON e.id = evidence_fts.rowid
        WHERE evidence_fts MATCH ? AND e.asset_id = ?
        ORDER BY score, e.id
        LIMIT ?`,
		match, assetID, topK,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "query", "search", "run fts query", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.UnitID, &hit.Kind, &hit.SourceRef, &hit.StartMs, &hit.EndMs, &hit.Text, &hit.Score); err != nil {
			return nil, services.Wrap(services.ErrDataIntegrity, "query", "search", "scan hit", err)
		}
		hit.Snippet = textutil.Snippet(hit.Text, snippetLength)
		hit.Citation = Citation(hit.Kind, hit.SourceRef, hit.StartMs, hit.EndMs)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "query", "search", "iterate hits", err)
	}
	return hits, nil
}

// Citation renders the canonical source reference:
//
//	[seg:SEG_000001 t=0:00-0:28]
//	[frame:KF_000001 t=0:18]
func Citation(kind, sourceRef string, startMs int64, endMs *int64) string {
	start := textutil.FormatTimeMs(startMs)
	if kind == KindTranscript {
		if endMs != nil {
			return fmt.Sprintf("[seg:%s t=%s-%s]", sourceRef, start, textutil.FormatTimeMs(*endMs))
		}
		return fmt.Sprintf("[seg:%s t=%s]", sourceRef, start)
	}
	return fmt.Sprintf("[frame:%s t=%s]", sourceRef, start)
}

// escapeFTSQuery neutralizes FTS5 operator syntax so user text is matched
// literally, term by term.
func escapeFTSQuery(query string) string {
	query = strings.ReplaceAll(query, `"`, " ")
	terms := strings.Fields(query)
	for i, term := range terms {
		terms[i] = `"` + term + `"`
	}
	return strings.Join(terms, " ")
}
