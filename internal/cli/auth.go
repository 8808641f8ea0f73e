package cli

import (
	"bytes"
	"context"
	"errors"

	"github.com/dmitrijs2005/crim/internal/common"
	"github.com/dmitrijs2005/crim/internal/identity"
)

// getSimpleText and getPassword are indirections swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// retryable errors send the user back to the prompt instead of aborting.
func retryable(err error) bool {
	return errors.Is(err, common.ErrInvalidUsername) ||
		errors.Is(err, common.ErrWeakPassword) ||
		errors.Is(err, common.ErrDuplicateUsername) ||
		errors.Is(err, common.ErrInvalidCredentials)
}

func (a *App) askUsername() (string, error) {
	username, err := getSimpleText(a.reader, "Enter username (or 'back')", a.out)
	if err != nil {
		return "", err
	}
	if username == backKeyword {
		a.println("Cancelled.")
		return "", errCancelled
	}
	return username, nil
}

// Register creates an account. Invalid or taken usernames and weak
// passwords are re-prompted up to maxAttempts times.
func (a *App) Register(ctx context.Context) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		username, err := a.askUsername()
		if err != nil {
			return err
		}
		if err := identity.ValidateUsername(username); err != nil {
			a.report(err)
			continue
		}

		password, err := getPassword("Enter password", a.out)
		if err != nil {
			return err
		}
		confirm, err := getPassword("Repeat password", a.out)
		if err != nil {
			common.WipeByteArray(password)
			return err
		}
		match := bytes.Equal(password, confirm)
		common.WipeByteArray(confirm)
		if !match {
			common.WipeByteArray(password)
			a.println("Passwords do not match.")
			continue
		}

		_, err = a.identity.Register(ctx, username, password)
		common.WipeByteArray(password)
		if err == nil {
			a.printf("Account %s created. You can log in now.\n", username)
			return nil
		}
		a.report(err)
		if !retryable(err) {
			return err
		}
	}
	a.println("Too many attempts.")
	return errTooManyAttempts
}

// Login authenticates and keeps the session for later commands.
func (a *App) Login(ctx context.Context) error {
	if a.session != nil {
		a.printf("Already logged in as %s. Log out first.\n", a.session.Username)
		return nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		username, err := a.askUsername()
		if err != nil {
			return err
		}
		password, err := getPassword("Enter password", a.out)
		if err != nil {
			return err
		}

		s, err := a.identity.Login(ctx, username, password)
		common.WipeByteArray(password)
		if err == nil {
			a.session = s
			a.printf("Logged in as %s.\n", s.Username)
			return nil
		}
		a.report(err)
		if !retryable(err) {
			return err
		}
	}
	a.println("Too many attempts.")
	return errTooManyAttempts
}

// Logout clears the session and its private key from the vault.
func (a *App) Logout(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	s := a.session
	a.session = nil
	if err := a.identity.Logout(ctx, s); err != nil {
		a.report(err)
		return err
	}
	a.println("Logged out.")
	return nil
}
