package models

import "time"

// WrappedKey is the conversation key encrypted for one participant.
type WrappedKey struct {
	Owner string `json:"owner"`
	Key   []byte `json:"key"`
}

// EncryptedMessage is the only persisted form of a message.
type EncryptedMessage struct {
	Data []byte `json:"data"`
}

// Conversation holds exactly one wrapped key per participant. Messages are
// append-only.
type Conversation struct {
	ID       string             `json:"id"`
	Users    []string           `json:"users"`
	Keys     []WrappedKey       `json:"keys"`
	Messages []EncryptedMessage `json:"messages"`
}

// KeyFor returns the wrapped key owned by username.
func (c *Conversation) KeyFor(username string) (WrappedKey, bool) {
	for _, k := range c.Keys {
		if k.Owner == username {
			return k, true
		}
	}
	return WrappedKey{}, false
}

// HasUser reports whether username participates in c.
func (c *Conversation) HasUser(username string) bool {
	for _, u := range c.Users {
		if u == username {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of c.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{
		ID:       c.ID,
		Users:    append([]string{}, c.Users...),
		Keys:     make([]WrappedKey, len(c.Keys)),
		Messages: make([]EncryptedMessage, len(c.Messages)),
	}
	for i, k := range c.Keys {
		out.Keys[i] = WrappedKey{Owner: k.Owner, Key: append([]byte(nil), k.Key...)}
	}
	for i, m := range c.Messages {
		out.Messages[i] = EncryptedMessage{Data: append([]byte(nil), m.Data...)}
	}
	return out
}

// ConversationSummary is a listing entry without key or message material.
type ConversationSummary struct {
	ID    string
	Users []string
}

// RawMessage is a decrypted message. It exists only in memory.
type RawMessage struct {
	Sender    string    `json:"sender"`
	Content   []byte    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
