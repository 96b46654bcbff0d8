package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type AdminAccount struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AdminStore interface {
	CountByRole(ctx context.Context, role Role) (int, error)
	Create(ctx context.Context, nu NewUser) (*User, error)
}

// EnsureAdmin creates acct with RoleAdmin when no admin exists yet. It never
// touches an existing admin and is safe to run on every start, including from
// several replicas at once.
func EnsureAdmin(ctx context.Context, store AdminStore, acct AdminAccount, logger *slog.Logger) (bool, error) {
	n, err := store.CountByRole(ctx, RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		logger.Debug("admin account present", "count", n)
		return false, nil
	}

	_, err = store.Create(ctx, NewUser{
		Email:     acct.Email,
		Password:  acct.Password,
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		Role:      RoleAdmin,
	})
	if errors.Is(err, ErrDuplicateEmail) {
		// Another instance may have won the race; anything else is a
		// regular account squatting on the admin address.
		if n, cerr := store.CountByRole(ctx, RoleAdmin); cerr == nil && n > 0 {
			return false, nil
		}
		return false, fmt.Errorf("bootstrap admin: %s is registered without the admin role", acct.Email)
	}
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	logger.Info("default admin account created", "email", acct.Email)
	return true, nil
}
