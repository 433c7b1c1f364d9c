package authpw

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChelseaChanu/taskSync/internal/store"
)

// AccountStore persists identity records. Lookups that match nothing return
// store.ErrNotFound.
type AccountStore interface {
	GetAccount(ctx context.Context, uid string) (store.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	FindByVerificationToken(ctx context.Context, tokenHash string) (store.Account, error)
	FindByResetToken(ctx context.Context, tokenHash string) (store.Account, error)
	SaveAccount(ctx context.Context, account store.Account) error
}

// DocumentAccounts keeps accounts in the accounts collection.
type DocumentAccounts struct {
	docs store.DocumentStore
}

func NewDocumentAccounts(docs store.DocumentStore) *DocumentAccounts {
	return &DocumentAccounts{docs: docs}
}

func (a *DocumentAccounts) GetAccount(ctx context.Context, uid string) (store.Account, error) {
	doc, err := a.docs.Get(ctx, store.CollectionAccounts, uid)
	if err != nil {
		return store.Account{}, err
	}
	var account store.Account
	if err := doc.Decode(&account); err != nil {
		return store.Account{}, fmt.Errorf("decode account: %w", err)
	}
	return account, nil
}

func (a *DocumentAccounts) GetAccountByEmail(ctx context.Context, email string) (store.Account, error) {
	return a.findOne(ctx, "email", normalizeEmail(email))
}

func (a *DocumentAccounts) FindByVerificationToken(ctx context.Context, tokenHash string) (store.Account, error) {
	return a.findOne(ctx, "verificationToken", tokenHash)
}

func (a *DocumentAccounts) FindByResetToken(ctx context.Context, tokenHash string) (store.Account, error) {
	return a.findOne(ctx, "resetToken", tokenHash)
}

func (a *DocumentAccounts) SaveAccount(ctx context.Context, account store.Account) error {
	if _, err := a.docs.Put(ctx, store.CollectionAccounts, account.UID, account); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (a *DocumentAccounts) findOne(ctx context.Context, field, value string) (store.Account, error) {
	if value == "" {
		return store.Account{}, store.ErrNotFound
	}
	docs, err := a.docs.Query(ctx, store.CollectionAccounts, store.Equal(field, value))
	if err != nil {
		return store.Account{}, fmt.Errorf("find account by %s: %w", field, err)
	}
	if len(docs) == 0 {
		return store.Account{}, store.ErrNotFound
	}
	var account store.Account
	if err := docs[0].Decode(&account); err != nil {
		return store.Account{}, fmt.Errorf("decode account: %w", err)
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
