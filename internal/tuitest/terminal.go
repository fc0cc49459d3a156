package tuitest

import (
	"bytes"
	"io"
)

// Bubble Tea and termenv probe the terminal on start-up; without answers the
// program stalls until its query timeout fires.
var terminalReplies = []struct {
	query []byte
	reply []byte
}{
	{[]byte("\x1b[6n"), []byte("\x1b[1;1R")},
	{[]byte("\x1b]10;?\x07"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x07")},
	{[]byte("\x1b]10;?\x1b\\"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x1b\\")},
	{[]byte("\x1b]11;?\x07"), []byte("\x1b]11;rgb:0000/0000/0000\x07")},
	{[]byte("\x1b]11;?\x1b\\"), []byte("\x1b]11;rgb:0000/0000/0000\x1b\\")},
}

const (
	responderLimit = 256
	responderTail  = 64
)

type terminalResponder struct {
	w       io.Writer
	pending []byte
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w, pending: make([]byte, 0, responderLimit)}
}

// Process answers every complete query seen so far. A short tail is kept so
// a query split across reads is still recognised.
func (tr *terminalResponder) Process(chunk []byte) {
	tr.pending = append(tr.pending, chunk...)
	for tr.answerNext() {
	}
	if len(tr.pending) > responderLimit {
		tr.pending = append(tr.pending[:0], tr.pending[len(tr.pending)-responderTail:]...)
	}
}

// answerNext replies to the earliest query in the buffer.
func (tr *terminalResponder) answerNext() bool {
	first, at := -1, -1
	for i, r := range terminalReplies {
		idx := bytes.Index(tr.pending, r.query)
		if idx >= 0 && (at < 0 || idx < at) {
			first, at = i, idx
		}
	}
	if first < 0 {
		return false
	}
	r := terminalReplies[first]
	tr.pending = tr.pending[at+len(r.query):]
	_, _ = tr.w.Write(r.reply)
	return true
}
