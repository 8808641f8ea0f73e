package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests use a stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Friends(ctx context.Context) error
	AddFriend(ctx context.Context, args []string) error
	RemoveFriend(ctx context.Context, args []string) error
	NewConversation(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Send(ctx context.Context, rest string) error
	Read(ctx context.Context, args []string) error
}

const (
	helpLoggedOut = "Available commands: register, login, exit"
	helpLoggedIn  = "Available commands: friends, addfriend <user>, rmfriend <user>, new <user...>, (l)ist, send <id> [text], read <id>, logout, exit"
)

// runREPL reads commands from reader until EOF, "exit" or "quit", and
// dispatches them to a. Handlers report their own errors to the user, so
// returned errors are ignored here.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "crim %s> ", statusFn())
		line, ok := readLine(reader)
		if !ok {
			fmt.Fprintln(w)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if ctx.Err() != nil {
			return
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, helpLoggedIn)
			} else {
				fmt.Fprintln(w, helpLoggedOut)
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "friends":
			_ = a.Friends(ctx)

		case "addfriend":
			_ = a.AddFriend(ctx, args)

		case "rmfriend":
			_ = a.RemoveFriend(ctx, args)

		case "new":
			_ = a.NewConversation(ctx, args)

		case "l", "list":
			_ = a.List(ctx)

		case "send":
			// the message keeps its own spacing
			_ = a.Send(ctx, strings.TrimSpace(line[len(cmd):]))

		case "read":
			_ = a.Read(ctx, args)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}
	}
}
