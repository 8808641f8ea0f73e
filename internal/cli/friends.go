package cli

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/crim/internal/auth"
)

func (a *App) Friends(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	friends, err := a.identity.Friends(ctx, a.session)
	if err != nil {
		a.report(err)
		return err
	}
	if len(friends) == 0 {
		a.println("No friends yet. Use 'addfriend <user>'.")
		return nil
	}
	a.println("Friends:", strings.Join(friends, ", "))
	return nil
}

func (a *App) AddFriend(ctx context.Context, args []string) error {
	return a.editFriend(ctx, args, "addfriend", a.identity.AddFriend, "%s added to friends.\n")
}

func (a *App) RemoveFriend(ctx context.Context, args []string) error {
	return a.editFriend(ctx, args, "rmfriend", a.identity.RemoveFriend, "%s removed from friends.\n")
}

func (a *App) editFriend(ctx context.Context, args []string, cmd string, edit func(context.Context, *auth.Session, string) error, done string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if len(args) != 1 {
		a.printf("Usage: %s <user>\n", cmd)
		return errUsage
	}
	if err := edit(ctx, a.session, args[0]); err != nil {
		a.report(err)
		return err
	}
	a.printf(done, args[0])
	return nil
}
