package evidence

import (
	"context"
	"sort"

	"assetizer/internal/asset"
	"assetizer/internal/frames"
	"assetizer/internal/ocr"
	"assetizer/internal/transcript"
)

// Item is one resolved piece of evidence: the hit plus the full source text
// and, for frame evidence, the image path.
type Item struct {
	Kind      string  `json:"kind"`
	SourceRef string  `json:"source_ref"`
	StartMs   int64   `json:"start_ms"`
	EndMs     *int64  `json:"end_ms,omitempty"`
	Text      string  `json:"text"`
	Snippet   string  `json:"snippet"`
	Citation  string  `json:"citation"`
	FramePath string  `json:"frame_path,omitempty"`
	Score     float64 `json:"score"`
}

// Pack is the printable query result: every item carries a citation, so a
// consumer can quote evidence with source references intact.
type Pack struct {
	AssetID string   `json:"asset_id"`
	Query   string   `json:"query"`
	Items   []Item   `json:"items"`
	Errors  []string `json:"errors,omitempty"`
}

// BuildPack searches and resolves hits against the on-disk transcript and
// OCR records. Items come back time-ordered. Zero hits yields an empty pack,
// not an error. Resolution problems (a record that vanished since indexing)
// are reported per pack without failing the whole query.
func (s *Store) BuildPack(ctx context.Context, layout asset.Layout, query string, topK int) (Pack, error) {
	pack := Pack{AssetID: layout.ID, Query: query, Items: []Item{}}

	hits, err := s.Search(ctx, layout.ID, query, topK)
	if err != nil {
		return pack, err
	}
	if len(hits) == 0 {
		return pack, nil
	}

	segmentByID := make(map[string]transcript.Segment)
	if hasKind(hits, KindTranscript) {
		segments, err := transcript.Read(layout.Transcript())
		if err != nil {
			pack.Errors = append(pack.Errors, "transcript records unavailable: "+err.Error())
		}
		for _, segment := range segments {
			segmentByID[segment.SegmentID] = segment
		}
	}

	frameText := make(map[string]string)
	framePath := make(map[string]string)
	if hasKind(hits, KindOCRFrame) {
		records, err := ocr.ReadNormalizedRecords(layout.OCRNormalized())
		if err != nil {
			pack.Errors = append(pack.Errors, "normalized OCR records unavailable: "+err.Error())
		}
		for _, record := range records {
			frameText[record.FrameID] = record.Text
		}
		if frameRecords, err := frames.ReadRecords(layout.FrameRecords()); err == nil {
			for _, record := range frameRecords {
				if record.Path != "" {
					framePath[record.FrameID] = layout.Path(record.Path)
				}
			}
		}
	}

	for _, hit := range hits {
		item := Item{
			Kind:      hit.Kind,
			SourceRef: hit.SourceRef,
			StartMs:   hit.StartMs,
			EndMs:     hit.EndMs,
			Text:      hit.Text,
			Snippet:   hit.Snippet,
			Citation:  hit.Citation,
			Score:     hit.Score,
		}
		switch hit.Kind {
		case KindTranscript:
			segment, ok := segmentByID[hit.SourceRef]
			switch {
			case !ok:
				pack.Errors = append(pack.Errors, "transcript segment not found: "+hit.SourceRef)
			case hit.StartMs == segment.StartMs && hit.EndMs != nil && *hit.EndMs == segment.EndMs:
				item.Text = segment.Text
			}
			// A unit spanning merged segments keeps its indexed text; its
			// ref names only the first constituent.
		case KindOCRFrame:
			if full, ok := frameText[hit.SourceRef]; ok {
				item.Text = full
			} else {
				pack.Errors = append(pack.Errors, "frame record not found: "+hit.SourceRef)
			}
			item.FramePath = framePath[hit.SourceRef]
		}
		pack.Items = append(pack.Items, item)
	}

	sort.SliceStable(pack.Items, func(a, b int) bool {
		if pack.Items[a].StartMs != pack.Items[b].StartMs {
			return pack.Items[a].StartMs < pack.Items[b].StartMs
		}
		return pack.Items[a].SourceRef < pack.Items[b].SourceRef
	})
	return pack, nil
}

func hasKind(hits []Hit, kind string) bool {
	for _, hit := range hits {
		if hit.Kind == kind {
			return true
		}
	}
	return false
}
