// Package ffmpeg wraps the ffmpeg and ffprobe binaries for frame sampling,
// duration probing, and audio extraction.
package ffmpeg
