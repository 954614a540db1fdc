//go:build !unix

package recorder

import (
	"context"
	"errors"
)

// Run is only available where creack/pty can open a pseudo-terminal.
func (r *Recorder) Run(ctx context.Context) error {
	return errors.New("recording requires a Unix pseudo-terminal")
}
