package logger

import "io"

// Position is a (row, col) coordinate in a terminal's scrollback.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Before reports whether p comes strictly before q in output order.
func (p Position) Before(q Position) bool {
	if p.Row != q.Row {
		return p.Row < q.Row
	}
	return p.Col < q.Col
}

// SubscriptionID identifies a content-change subscription on a Surface.
type SubscriptionID uint64

// ChangeFunc is invoked by a Surface each time new text has been rendered.
// Errors are handed back to whoever fed the surface.
type ChangeFunc func() error

// Surface is the part of a terminal the registry needs.
type Surface interface {
	CursorPosition() Position
	// TextRange returns the text rendered between start and end.
	TextRange(start, end Position) string
	Subscribe(fn ChangeFunc) SubscriptionID
	Unsubscribe(id SubscriptionID)
}

// File is a writable log destination owned by a session.
type File interface {
	io.Writer
	Truncate(size int64) error
	Close() error
}
