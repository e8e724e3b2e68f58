package local

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts stores credential records.
type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string) (*Account, error)
	ExistsEmail(ctx context.Context, email string) (bool, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository builds the account repository over db.
func NewAccountsRepository(db *bun.DB) Accounts {
	return &accounts{
		Repository: repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
			NewRecord: func() *Account { return &Account{} },
			GetID: func(a *Account) uuid.UUID {
				if a == nil {
					return uuid.Nil
				}
				return a.ID
			},
			SetID: func(a *Account, id uuid.UUID) {
				if a != nil {
					a.ID = id
				}
			},
		}),
		db: db,
	}
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.Get(ctx, byEmail(normalizeEmail(email)))
}

func (a *accounts) ExistsEmail(ctx context.Context, email string) (bool, error) {
	return a.db.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Exists(ctx)
}

func byEmail(email string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", email)
	}
}

func byID(id uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id)
	}
}

// NewProfilesRepository builds the profile repository over db.
func NewProfilesRepository(db *bun.DB) repository.Repository[*Profile] {
	return repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})
}
