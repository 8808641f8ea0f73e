// Package cli is the interactive front end of CRIM. It reads commands from
// a terminal and drives the identity, envelope and relay services.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/crim/internal/auth"
	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/models"
)

const banner = `  ____ ____  ___ __  __
 / ___|  _ \|_ _|  \/  |
| |   | |_) || || |\/| |
| |___|  _ < | || |  | |
 \____|_| \_\___|_|  |_|
`

type IdentityService interface {
	Register(ctx context.Context, username string, password []byte) (*models.Account, error)
	Login(ctx context.Context, username string, password []byte) (*auth.Session, error)
	Logout(ctx context.Context, s *auth.Session) error
	AddFriend(ctx context.Context, s *auth.Session, friend string) error
	RemoveFriend(ctx context.Context, s *auth.Session, friend string) error
	Friends(ctx context.Context, s *auth.Session) ([]string, error)
}

type ConversationService interface {
	CreateConversation(ctx context.Context, participants []string) (*models.Conversation, error)
	ListConversations(ctx context.Context, s *auth.Session) ([]models.ConversationSummary, error)
}

type MessageService interface {
	SendMessage(ctx context.Context, s *auth.Session, conversationID string, content []byte) error
	ReceiveMessages(ctx context.Context, s *auth.Session, conversationID string) ([]models.RawMessage, error)
}

type App struct {
	identity      IdentityService
	conversations ConversationService
	messages      MessageService

	// requireFriends limits new conversations to the caller's friends.
	requireFriends bool

	session *auth.Session
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(identity IdentityService, conversations ConversationService, messages MessageService,
	requireFriends bool, in io.Reader, out io.Writer) *App {
	return &App{
		identity:       identity,
		conversations:  conversations,
		messages:       messages,
		requireFriends: requireFriends,
		reader:         bufio.NewReader(in),
		out:            out,
	}
}

// Run shows the banner and serves commands until the input ends or the
// user exits. An open session is logged out on the way out.
func (a *App) Run(ctx context.Context) {
	fmt.Fprint(a.out, banner)
	fmt.Fprintln(a.out, "Welcome to CRIM (type 'help' for commands)")

	runREPL(ctx, a, a.getStatus, a.reader, a.out)

	if a.isLoggedIn() {
		_ = a.Logout(context.WithoutCancel(ctx))
	}
}

func (a *App) isLoggedIn() bool {
	return a.session != nil
}

func (a *App) getStatus() string {
	if a.session == nil {
		return ""
	}
	return "(" + a.session.Username + ")"
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// report prints err without its cause chain.
func (a *App) report(err error) {
	var ce *common.Error
	if errors.As(err, &ce) {
		a.printf("Error: %s\n", ce.Reason)
		return
	}
	a.printf("Error: %v\n", err)
}

var (
	errNotLoggedIn = errors.New("not logged in")
	errUsage       = errors.New("bad usage")
)

func (a *App) requireSession() error {
	if a.session == nil {
		a.println("Please log in first.")
		return errNotLoggedIn
	}
	return nil
}
