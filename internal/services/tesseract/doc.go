// Package tesseract wraps the tesseract binary in TSV mode and parses its
// output into word spans.
package tesseract
