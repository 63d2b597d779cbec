package domain

import (
	"context"
	"time"

	"easyrent/internal/query"
)

// Finders return (nil, nil) when nothing matches.

type UserRepository interface {
	// Create fails with apperrors.ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByResetToken(ctx context.Context, tokenHash string) (*User, error)
	List(ctx context.Context, q *query.Query) ([]User, int64, error)
	Update(ctx context.Context, u *User) error
	SetResetToken(ctx context.Context, id, tokenHash string, expires *time.Time) error
	// RedeemResetToken swaps the password only while tokenHash is still the
	// stored token, and clears it in the same write. It reports whether it won.
	RedeemResetToken(ctx context.Context, id, tokenHash, passwordHash string, changedAt time.Time) (bool, error)
}

type ListingRepository interface {
	Create(ctx context.Context, l *Listing) error
	FindByID(ctx context.Context, id string) (*Listing, error)
	List(ctx context.Context, q *query.Query) ([]Listing, int64, error)
	Update(ctx context.Context, l *Listing) error
}
