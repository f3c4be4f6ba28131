package auth

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/store"
)

// ErrInvalidCredentials is returned for an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator checks a username and password.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
}

// DBAuthenticator checks bcrypt hashes stored in the users table.
type DBAuthenticator struct {
	DB *sql.DB
}

func (a *DBAuthenticator) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := store.GetUserByUsername(ctx, a.DB, username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

type staticUser struct {
	password string
	role     string
}

// StaticAuthenticator checks against a fixed credential list.
type StaticAuthenticator struct {
	users map[string]staticUser
}

// ParseCredentials reads "user:password[:role]" entries separated by commas.
// The role defaults to staff.
func ParseCredentials(spec string) (*StaticAuthenticator, error) {
	a := &StaticAuthenticator{users: map[string]staticUser{}}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid credential entry %q", entry)
		}
		role := model.RoleStaff
		if len(parts) == 3 {
			role = parts[2]
		}
		if !model.ValidRole(role) {
			return nil, fmt.Errorf("invalid role %q for %s", role, parts[0])
		}
		a.users[parts[0]] = staticUser{password: parts[1], role: role}
	}
	return a, nil
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, username, password string) (*model.User, error) {
	u, ok := a.users[username]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(u.password), []byte(password)) != 1 {
		return nil, ErrInvalidCredentials
	}
	return &model.User{Username: username, Role: u.role}, nil
}

// Chain tries each authenticator in order and returns the first success.
// Errors other than ErrInvalidCredentials stop the chain.
type Chain []Authenticator

func (c Chain) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	for _, a := range c {
		user, err := a.Authenticate(ctx, username, password)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrInvalidCredentials) {
			return nil, err
		}
	}
	return nil, ErrInvalidCredentials
}
