// Package ocr holds raw OCR span records and turns them into normalized
// reading-order text.
package ocr
