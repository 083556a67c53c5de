// Package selection picks the representative frames for OCR from the scored
// timeline.
package selection
