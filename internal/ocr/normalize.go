package ocr

import (
	"sort"
	"strings"

	"assetizer/internal/services/tesseract"
	"assetizer/internal/textutil"
)

// NormalizeParams controls span filtering during normalization.
type NormalizeParams struct {
	MinConfidence float64
}

// Normalize turns raw word spans into reading-order lines: drop spans below
// the confidence floor, cluster the rest into lines by vertical center, sort
// lines top to bottom and words left to right, then fold widths and collapse
// whitespace. A frame whose spans all fall below the floor yields empty
// lines, which downstream stages record explicitly.
func Normalize(spans []tesseract.Span, params NormalizeParams) []string {
	var kept []tesseract.Span
	for _, span := range spans {
		if span.Conf < params.MinConfidence {
			continue
		}
		if strings.TrimSpace(span.Text) == "" {
			continue
		}
		kept = append(kept, span)
	}
	if len(kept) == 0 {
		return []string{}
	}

	tolerance := 0.6 * medianHeight(kept)
	clusters := clusterLines(kept, tolerance)

	lines := make([]string, 0, len(clusters))
	for _, cluster := range clusters {
		sort.SliceStable(cluster, func(a, b int) bool {
			return cluster[a].Left < cluster[b].Left
		})
		words := make([]string, 0, len(cluster))
		for _, span := range cluster {
			words = append(words, span.Text)
		}
		line := textutil.NormalizeSpace(textutil.Fold(strings.Join(words, " ")))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// JoinLines flattens normalized lines into one searchable text blob.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func medianHeight(spans []tesseract.Span) float64 {
	heights := make([]int, 0, len(spans))
	for _, span := range spans {
		if span.Height > 0 {
			heights = append(heights, span.Height)
		}
	}
	if len(heights) == 0 {
		return 1
	}
	sort.Ints(heights)
	mid := len(heights) / 2
	if len(heights)%2 == 0 {
		return float64(heights[mid-1]+heights[mid]) / 2
	}
	return float64(heights[mid])
}

// clusterLines groups spans whose vertical centers sit within tolerance of a
// running line center. Spans arrive in TSV order; the output clusters are
// sorted by center so lines read top to bottom.
func clusterLines(spans []tesseract.Span, tolerance float64) [][]tesseract.Span {
	type cluster struct {
		center float64
		spans  []tesseract.Span
	}

	var clusters []*cluster
	for _, span := range spans {
		center := float64(span.Top) + float64(span.Height)/2

		var best *cluster
		bestDistance := tolerance
		for _, c := range clusters {
			distance := center - c.center
			if distance < 0 {
				distance = -distance
			}
			if distance <= bestDistance {
				best = c
				bestDistance = distance
			}
		}
		if best == nil {
			clusters = append(clusters, &cluster{center: center, spans: []tesseract.Span{span}})
			continue
		}
		best.spans = append(best.spans, span)
		// Keep the cluster center a running mean so long lines don't drift.
		best.center += (center - best.center) / float64(len(best.spans))
	}

	sort.SliceStable(clusters, func(a, b int) bool {
		return clusters[a].center < clusters[b].center
	})
	result := make([][]tesseract.Span, len(clusters))
	for i, c := range clusters {
		result[i] = c.spans
	}
	return result
}
