// Package terminal provides a plain-text terminal surface: output bytes go
// in, rows of text with a cursor come out, and subscribers are told whenever
// something new has been rendered.
package terminal

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"github.com/fakeyudi/termlog/internal/logger"
)

// DefaultMaxRows is the scrollback kept when Options.MaxRows is zero.
const DefaultMaxRows = 10000

// DefaultMaxLineRunes is the longest unterminated row kept when
// Options.MaxLineRunes is zero. Carriage returns are dropped rather than
// rewinding the cursor, so a progress bar that redraws itself with \r keeps
// growing its row; runes past the limit are discarded until the next \n.
const DefaultMaxLineRunes = 4096

// maxPendingEscape bounds how much of an unterminated escape sequence is held
// back between writes.
const maxPendingEscape = 256

// Options configures a Buffer.
type Options struct {
	MaxRows      int
	MaxLineRunes int
}

type subscriber struct {
	id logger.SubscriptionID
	fn logger.ChangeFunc
}

// Buffer is an append-only text surface. Escape sequences are stripped, not
// interpreted, and the cursor only ever moves forward.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	rows    []string // rows[len(rows)-1] is the unterminated current row
	base    int      // absolute row number of rows[0]
	maxRows int
	maxLine int
	lineLen int // runes in the current row

	pending string // escape sequence or rune split across writes

	subs   []subscriber
	nextID logger.SubscriptionID
}

// NewBuffer returns an empty Buffer with the cursor at (0, 0).
func NewBuffer(opts Options) *Buffer {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.MaxLineRunes <= 0 {
		opts.MaxLineRunes = DefaultMaxLineRunes
	}
	return &Buffer{
		rows:    []string{""},
		maxRows: opts.MaxRows,
		maxLine: opts.MaxLineRunes,
	}
}

// Write renders p and notifies subscribers. It always consumes all of p; the
// returned error joins whatever the subscribers reported.
func (b *Buffer) Write(p []byte) (int, error) {
	text := b.pending + string(p)
	text, b.pending = splitIncompleteEscape(text)
	if b.pending == "" {
		text, b.pending = splitIncompleteRune(text)
	}
	if text == "" {
		return len(p), nil
	}

	if !b.append(ansi.Strip(text)) {
		return len(p), nil
	}
	return len(p), b.notify()
}

// append adds printable text to the rows and reports whether anything changed.
func (b *Buffer) append(text string) bool {
	var cur strings.Builder
	cur.WriteString(b.rows[len(b.rows)-1])
	changed := false

	for _, r := range text {
		switch {
		case r == '\n':
			b.rows[len(b.rows)-1] = cur.String()
			b.rows = append(b.rows, "")
			cur.Reset()
			b.lineLen = 0
			changed = true
			continue
		case r == '\t':
		case r < 0x20 || r == 0x7f || r == utf8.RuneError:
			// Carriage returns and other controls are dropped; the
			// cursor never moves backwards.
			continue
		}
		if b.lineLen >= b.maxLine {
			continue
		}
		cur.WriteRune(r)
		b.lineLen++
		changed = true
	}
	b.rows[len(b.rows)-1] = cur.String()
	b.trim()
	return changed
}

// trim drops the oldest rows beyond maxRows, keeping absolute numbering.
func (b *Buffer) trim() {
	if extra := len(b.rows) - b.maxRows; extra > 0 {
		b.rows = append([]string(nil), b.rows[extra:]...)
		b.base += extra
	}
}

func (b *Buffer) notify() error {
	var errs []error
	// Copy so callbacks may unsubscribe.
	subs := append([]subscriber(nil), b.subs...)
	for _, s := range subs {
		if err := s.fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CursorPosition returns the end of the rendered text.
func (b *Buffer) CursorPosition() logger.Position {
	last := len(b.rows) - 1
	return logger.Position{
		Row: b.base + last,
		Col: utf8.RuneCountInString(b.rows[last]),
	}
}

// TextRange returns the text between start and end. Terminated rows carry
// their trailing newline. Rows that have left scrollback yield nothing.
func (b *Buffer) TextRange(start, end logger.Position) string {
	if !start.Before(end) {
		return ""
	}
	var sb strings.Builder
	lastRow := b.base + len(b.rows) - 1
	for row := max(start.Row, b.base); row <= end.Row && row <= lastRow; row++ {
		line := b.rows[row-b.base]
		from, to := 0, utf8.RuneCountInString(line)
		if row == start.Row {
			from = min(start.Col, to)
		}
		terminated := row < lastRow
		if row == end.Row {
			to = min(end.Col, to)
			terminated = false
		}
		if from < to {
			sb.WriteString(runeSlice(line, from, to))
		}
		if terminated {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Subscribe registers fn to run after every Write that renders something.
func (b *Buffer) Subscribe(fn logger.ChangeFunc) logger.SubscriptionID {
	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, fn: fn})
	return b.nextID
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Buffer) Unsubscribe(id logger.SubscriptionID) {
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func runeSlice(s string, from, to int) string {
	i, start, stop := 0, len(s), len(s)
	for pos := range s {
		if i == from {
			start = pos
		}
		if i == to {
			stop = pos
			break
		}
		i++
	}
	return s[start:stop]
}

// splitIncompleteEscape separates a trailing escape sequence that has not
// been terminated yet so it can be completed by the next write.
func splitIncompleteEscape(s string) (complete, pending string) {
	idx := strings.LastIndexByte(s, '\x1b')
	if idx < 0 {
		return s, ""
	}
	tail := s[idx:]
	if len(tail) > maxPendingEscape || escapeComplete(tail) {
		return s, ""
	}
	return s[:idx], tail
}

// splitIncompleteRune separates a trailing partial UTF-8 encoding.
func splitIncompleteRune(s string) (complete, pending string) {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if !utf8.FullRuneInString(s[i:]) {
				return s[:i], s[i:]
			}
			break
		}
	}
	return s, ""
}

func escapeComplete(seq string) bool {
	if len(seq) < 2 {
		return false
	}
	switch seq[1] {
	case '[':
		for i := 2; i < len(seq); i++ {
			if seq[i] >= 0x40 && seq[i] <= 0x7e {
				return true
			}
		}
		return false
	case ']', 'P', '_', '^', 'X':
		return strings.ContainsRune(seq, '\a') || strings.Contains(seq[2:], "\x1b\\")
	case '(', ')', '*', '+', '#', ' ', '%':
		return len(seq) >= 3
	default:
		return true
	}
}
