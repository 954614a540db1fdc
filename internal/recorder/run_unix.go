//go:build unix

package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/x/term"
	"github.com/creack/pty"

	"github.com/fakeyudi/termlog/internal/control"
)

// Run starts the command in a PTY and logs its output until the command
// exits or ctx is cancelled. On cancellation the command receives SIGHUP and
// its remaining output is still logged.
func (r *Recorder) Run(ctx context.Context) error {
	if len(r.opts.Command) == 0 {
		return errors.New("no command to run")
	}
	if err := r.begin(); err != nil {
		return err
	}

	cmd := exec.Command(r.opts.Command[0], r.opts.Command[1:]...)
	cmd.Env = append(os.Environ(), SessionEnv+"="+r.opts.ID.String())
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return errors.Join(fmt.Errorf("start %s: %w", r.opts.Command[0], err), r.finish())
	}
	defer ptmx.Close()

	if f, ok := r.opts.Stdin.(*os.File); ok && term.IsTerminal(f.Fd()) {
		restore, err := attachTTY(f, ptmx)
		if err != nil {
			r.log.Warn("raw mode unavailable", "err", err)
		} else {
			defer restore()
		}
	}
	if r.opts.Stdin != nil {
		go io.Copy(ptmx, r.opts.Stdin)
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	actions := make(chan control.Action)
	go func() {
		if err := r.inbox.Watch(watchCtx, actions); err != nil {
			r.log.Warn("control inbox unavailable", "err", err)
		}
	}()

	output := make(chan []byte)
	go pump(ptmx, output)

	var errs []error
	done := ctx.Done()
loop:
	for {
		select {
		case chunk, ok := <-output:
			if !ok {
				break loop
			}
			r.feed(chunk)
		case a := <-actions:
			if err := r.handle(a); err != nil {
				r.log.Warn("control action failed", "action", a, "err", err)
				errs = append(errs, err)
			}
		case <-done:
			done = nil
			cmd.Process.Signal(syscall.SIGHUP)
		}
	}
	stopWatch()

	errs = append(errs, r.finish())
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			errs = append(errs, err)
		}
	}
	if n := len(r.writeErrs); n > 0 {
		errs = append(errs, fmt.Errorf("%d log writes failed, first: %w", n, r.writeErrs[0]))
	}
	return errors.Join(errs...)
}

// pump copies PTY output into out until the PTY is closed. Linux reports the
// end of a PTY as EIO rather than EOF, so any read error ends the stream.
func pump(ptmx io.Reader, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 32*1024)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			return
		}
	}
}

// attachTTY puts the user's terminal in raw mode and keeps the PTY's size in
// sync with it. The returned func undoes both.
func attachTTY(tty, ptmx *os.File) (func(), error) {
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			pty.InheritSize(tty, ptmx)
		}
	}()
	winch <- syscall.SIGWINCH

	state, err := term.MakeRaw(tty.Fd())
	if err != nil {
		signal.Stop(winch)
		close(winch)
		return nil, err
	}
	return func() {
		signal.Stop(winch)
		close(winch)
		term.Restore(tty.Fd(), state)
	}, nil
}
