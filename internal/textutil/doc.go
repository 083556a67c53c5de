// Package textutil provides text processing helpers shared by the OCR
// normalizer and the evidence layer: whitespace collapsing, Unicode width
// folding, tokenization, snippet truncation, and timestamp formatting.
package textutil
