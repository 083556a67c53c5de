// Package transcriber turns extracted audio into timed transcript segments
// via a whisper-style command line model.
package transcriber
