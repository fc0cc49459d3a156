package tuitest

import (
	"regexp"
	"strings"
)

// Frame is one screen paint, split on erase-display sequences.
type Frame struct {
	Index int
	ANSI  string
	Plain string
}

var (
	eraseDisplay = regexp.MustCompile(`\x1b\[[0-9;]*J`)
	escapeSeq    = regexp.MustCompile(`\x1b\][^\x07]*(?:\x07|\x1b\\)|\x1b\[[0-9;?]*[A-Za-z]|[\x0e\x0f]`)
)

func parseFrames(raw []byte) []Frame {
	stream := strings.ReplaceAll(string(raw), "\r", "")
	var frames []Frame
	for _, part := range eraseDisplay.Split(stream, -1) {
		part = strings.TrimPrefix(strings.Trim(part, "\x00"), "\x1b[H")
		plain := stripANSI(part)
		if strings.TrimSpace(plain) == "" {
			continue
		}
		frames = append(frames, Frame{Index: len(frames), ANSI: part, Plain: tidy(plain)})
	}
	if len(frames) == 0 && stream != "" {
		frames = []Frame{{ANSI: stream, Plain: tidy(stripANSI(stream))}}
	}
	return frames
}

// FinalFrame returns the last paint, or false when nothing was drawn.
func (r *Recording) FinalFrame() (Frame, bool) {
	if r == nil || len(r.Frames) == 0 {
		return Frame{}, false
	}
	return r.Frames[len(r.Frames)-1], true
}

func stripANSI(s string) string {
	return escapeSeq.ReplaceAllString(s, "")
}

// tidy drops trailing blanks on each line and trailing empty lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
