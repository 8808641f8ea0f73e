// Package models defines the records CRIM persists through its document
// store and the transient values exchanged between core layers.
package models

// Account is the canonical user record. Username is the primary join key
// everywhere, including crypto lookups, and never changes.
type Account struct {
	Username string `json:"username"`
	// Hash is the password verifier derived from the Argon2id master key.
	Hash []byte `json:"hash"`
	Salt []byte `json:"salt"`
	// PublicKey is a PKIX PEM block.
	PublicKey []byte `json:"public_key"`
	// PrivKeyEnc is the private key sealed under the master key (PEM).
	PrivKeyEnc []byte   `json:"priv_key_enc"`
	Friends    []string `json:"friends"`
}

// HasFriend reports whether name is in a's friend list.
func (a *Account) HasFriend(name string) bool {
	for _, f := range a.Friends {
		if f == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	c := *a
	c.Hash = append([]byte(nil), a.Hash...)
	c.Salt = append([]byte(nil), a.Salt...)
	c.PublicKey = append([]byte(nil), a.PublicKey...)
	c.PrivKeyEnc = append([]byte(nil), a.PrivKeyEnc...)
	c.Friends = append([]string{}, a.Friends...)
	return &c
}
