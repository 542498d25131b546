package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/mladen081/u-m/cmd/internal/auth/session"
	"github.com/mladen081/u-m/cmd/internal/chat"
	"github.com/mladen081/u-m/cmd/internal/realtime"
	v1 "github.com/mladen081/u-m/shared/contracts/realtime/v1"
)

// ErrNotSignedIn is returned by RunChat when no credential pair is stored.
var ErrNotSignedIn = errors.New("not signed in")

var errQuit = errors.New("quit")

const chatHelp = `commands:
  /online     list online users
  /history    reload the latest messages
  /clear      delete every message (admin)
  /status     show session and connection state
  /reconnect  connect again after the retry budget ran out
  /quit       leave
anything else is sent as a message`

// terminalView prints realtime updates as lines.
type terminalView struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

func newTerminalView(out io.Writer, on bool) *terminalView {
	return &terminalView{out: out, color: on}
}

func (v *terminalView) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _ = fmt.Fprintf(v.out, format+"\n", args...)
}

func (v *terminalView) notice(s string) {
	v.printf("%s", paint(v.color, "* "+s, color.Faint))
}

func (v *terminalView) Message(m chat.Message) {
	ts := "--:--"
	if t := m.Time(); !t.IsZero() {
		ts = t.Local().Format("15:04")
	}
	v.printf("%s %s %s",
		paint(v.color, "["+ts+"]", color.Faint),
		paint(v.color, m.Username+":", color.Bold, color.FgCyan),
		m.Message,
	)
}

func (v *terminalView) Cleared() {
	v.notice("history cleared by an admin")
}

func (v *terminalView) Online(users []string) {
	if len(users) == 0 {
		v.notice("nobody online")
		return
	}
	v.notice(fmt.Sprintf("online (%d): %s", len(users), strings.Join(users, ", ")))
}

func (v *terminalView) State(s realtime.State) {
	v.printf("%s", colorizeState(s.String(), v.color))
}

// RunChat runs the interactive room until ctx is done, the input ends, the
// user types /quit, or the session is ended by a rejected refresh.
func (a *App) RunChat(ctx context.Context, in io.Reader, out io.Writer) error {
	if !a.auth.IsAuthenticated() {
		return ErrNotSignedIn
	}

	view := newTerminalView(out, !color.NoColor)
	a.SetView(view)
	defer a.SetView(nil)

	if p, ok := a.auth.CurrentUser(); ok {
		view.notice("signed in as " + p.Username + " (/help for commands)")
	}
	if err := a.printHistory(ctx, view); err != nil {
		return err
	}
	if users, err := a.chat.OnlineUsers(ctx); err == nil {
		view.Online(users)
	} else if session.IsTerminal(err) {
		return err
	}

	if err := a.rt.Connect(); err != nil {
		return err
	}
	defer func() {
		a.rt.Disconnect()
		a.rt.Wait()
	}()

	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	// The scanner blocks on the reader and cannot be cancelled; it exits
	// with the process or when the reader closes.
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	logout := a.bus.Notify(gctx)

	g.Go(func() error { return a.RunDebugServer(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case sig := <-logout:
				view.notice("session ended, sign in again")
				return fmt.Errorf("%w: %s", session.ErrSessionTerminated, sig.Reason)
			case line, ok := <-lines:
				if !ok {
					return errQuit
				}
				if err := a.handleLine(gctx, view, line); err != nil {
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

func (a *App) handleLine(ctx context.Context, view *terminalView, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var err error
	switch line {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		view.printf("%s", chatHelp)
	case "/online":
		var users []string
		if users, err = a.chat.OnlineUsers(ctx); err == nil {
			view.Online(users)
		}
	case "/history":
		err = a.printHistory(ctx, view)
	case "/clear":
		if !a.auth.IsAdmin() {
			view.notice("only admins can clear the history")
			return nil
		}
		var msg string
		if msg, err = a.chat.DeleteAll(ctx); err == nil {
			view.notice(msg)
		}
	case "/status":
		st := a.Status()
		view.notice(fmt.Sprintf("user=%s admin=%t realtime=%s retries=%d gave_up=%t",
			st.Username, st.IsAdmin, st.Realtime, st.RetryAttempt, st.RetryGaveUp))
	case "/reconnect":
		if err := a.rt.Connect(); err != nil {
			view.notice("reconnect: " + err.Error())
		}
	default:
		if strings.HasPrefix(line, "/") {
			view.notice("unknown command " + line)
			return nil
		}
		return a.send(ctx, view, line)
	}

	if err != nil {
		if session.IsTerminal(err) {
			return err
		}
		view.notice(describeError(err))
	}
	return nil
}

func (a *App) send(ctx context.Context, view *terminalView, text string) error {
	if a.rt.State() != realtime.StateOpen {
		view.notice("not connected, message dropped")
		return nil
	}
	err := a.rt.SendMessage(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, realtime.ErrRateLimited):
		view.notice("slow down")
	case errors.Is(err, v1.ErrEmptyMessage):
	case errors.Is(err, v1.ErrMessageTooLong):
		view.notice(fmt.Sprintf("message is longer than %d characters", v1.MaxMessageChars))
	default:
		view.notice("send: " + err.Error())
	}
	return nil
}

func (a *App) printHistory(ctx context.Context, view *terminalView) error {
	msgs, err := a.LoadHistory(ctx)
	if err != nil {
		if session.IsTerminal(err) {
			return err
		}
		view.notice("history: " + describeError(err))
		return nil
	}
	for _, m := range msgs {
		view.Message(m)
	}
	return nil
}

// describeError turns an API error into the message the server meant for users.
func describeError(err error) string {
	if apiErr, ok := session.AsAPIError(err); ok {
		if msg := apiErr.FirstMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}
