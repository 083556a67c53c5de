// Package timeline scores frame info-density and folds frames into a
// fixed-width bucket timeline over the video duration.
package timeline
