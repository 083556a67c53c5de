// Package frames samples candidate keyframes from a video, bounds their
// width, and removes exact duplicates while keeping stable frame ids.
package frames
