package local

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account holds the credentials of one user.
type Account struct {
	bun.BaseModel `bun:"table:auth_accounts,alias:acc"`
	ID            uuid.UUID `bun:"id,pk,type:text" json:"id"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	DisplayName   string    `bun:"display_name" json:"display_name,omitempty"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Profile is the public profile row written after sign up.
type Profile struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,type:text" json:"id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Email         string    `bun:"email,notnull" json:"email"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}
