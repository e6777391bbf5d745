package main

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/crystal-mush/gofugue/pkg/client"
)

// watchResize reports the terminal size to the session once at startup
// and again on every SIGWINCH, raising the resize hook each time.
func watchResize(sess *client.Session) {
	report := func() {
		ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
		if err != nil {
			return
		}
		cols, rows := int(ws.Col), int(ws.Row)
		sess.Post(func() { sess.HandleResize(cols, rows) })
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	go func() {
		for range ch {
			report()
		}
	}()
	report()
}
