package authcore

import (
	"context"
	"time"

	"authcore/userstore"
)

// User is the public view of an account, without credential material.
type User struct {
	UserID    string
	Username  string
	CreatedAt time.Time
}

// UserStore is the credential backend consumed by the Engine. The
// shipped Redis implementation lives in the userstore package; callers
// may supply their own as long as Create enforces username uniqueness
// atomically and lookups match usernames case-sensitively.
type UserStore interface {
	Create(ctx context.Context, record *userstore.Record) error
	FindByUsername(ctx context.Context, username string) (*userstore.Record, error)
	FindByID(ctx context.Context, userID string) (*userstore.Record, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

func userFromRecord(record *userstore.Record) *User {
	return &User{
		UserID:    record.UserID,
		Username:  record.Username,
		CreatedAt: time.Unix(record.CreatedAt, 0).UTC(),
	}
}
