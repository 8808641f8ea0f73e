package cli

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/crim/internal/common"
)

const timestampLayout = "2006-01-02 15:04:05"

// NewConversation opens a conversation between the caller and the named
// users. With requireFriends set, every other participant must be a friend.
func (a *App) NewConversation(ctx context.Context, args []string) error {
	if err := a.requireSession(); err != nil {
		return err
	}

	if len(args) == 0 {
		line, err := getSimpleText(a.reader, "Enter participants separated by spaces (or 'back')", a.out)
		if err != nil {
			return err
		}
		if line == backKeyword {
			a.println("Cancelled.")
			return errCancelled
		}
		args = strings.Fields(line)
	}
	if len(args) == 0 {
		a.println("Usage: new <user...>")
		return errUsage
	}

	if a.requireFriends {
		friends, err := a.identity.Friends(ctx, a.session)
		if err != nil {
			a.report(err)
			return err
		}
		known := make(map[string]bool, len(friends))
		for _, f := range friends {
			known[f] = true
		}
		for _, u := range args {
			if u != a.session.Username && !known[u] {
				a.printf("%s is not your friend. Use 'addfriend %s' first.\n", u, u)
				return common.ErrNotAFriend
			}
		}
	}

	participants := append([]string{a.session.Username}, args...)
	conv, err := a.conversations.CreateConversation(ctx, participants)
	if err != nil {
		a.report(err)
		return err
	}
	a.printf("Conversation %s created with %s.\n", conv.ID, strings.Join(conv.Users, ", "))
	return nil
}

func (a *App) List(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	list, err := a.conversations.ListConversations(ctx, a.session)
	if err != nil {
		a.report(err)
		return err
	}
	if len(list) == 0 {
		a.println("No conversations.")
		return nil
	}
	for _, c := range list {
		a.printf("%s  %s\n", c.ID, strings.Join(c.Users, ", "))
	}
	return nil
}

// Send posts a message. rest is the command line after "send": the id,
// then the text exactly as typed. Without text the user is prompted.
func (a *App) Send(ctx context.Context, rest string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	id, text := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		id, text = rest[:i], strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
	}
	if id == "" {
		a.println("Usage: send <id> [text]")
		return errUsage
	}

	if text == "" {
		var err error
		if text, err = getSimpleText(a.reader, "Enter message", a.out); err != nil {
			return err
		}
	}
	if text == "" {
		a.println("Nothing to send.")
		return errUsage
	}

	if err := a.messages.SendMessage(ctx, a.session, id, []byte(text)); err != nil {
		a.report(err)
		return err
	}
	a.println("Sent.")
	return nil
}

// Read prints the conversation history in order.
func (a *App) Read(ctx context.Context, args []string) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if len(args) != 1 {
		a.println("Usage: read <id>")
		return errUsage
	}

	msgs, err := a.messages.ReceiveMessages(ctx, a.session, args[0])
	if err != nil {
		a.report(err)
		return err
	}
	if len(msgs) == 0 {
		a.println("No messages yet.")
		return nil
	}
	for _, m := range msgs {
		a.printf("[%s] %s: %s\n", m.Timestamp.Format(timestampLayout), printable(m.Sender), printable(string(m.Content)))
	}
	return nil
}

// printable escapes control characters so text from other users cannot
// drive the terminal.
func printable(s string) string {
	if strings.IndexFunc(s, unicode.IsControl) < 0 {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			q := strconv.QuoteRune(r)
			b.WriteString(q[1 : len(q)-1])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
