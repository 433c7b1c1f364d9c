package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/store"
)

// DocumentStore keeps refresh sessions in the refreshSessions collection
// when Redis is not configured.
type DocumentStore struct {
	docs store.DocumentStore
	now  func() time.Time
}

func NewDocumentStore(docs store.DocumentStore) *DocumentStore {
	return &DocumentStore{docs: docs, now: time.Now}
}

func (s *DocumentStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.docs.Put(ctx, store.CollectionRefreshSessions, tokenHash, store.RefreshSession{
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *DocumentStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	doc, err := s.docs.Get(ctx, store.CollectionRefreshSessions, tokenHash)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup refresh session: %w", err)
	}
	var rs store.RefreshSession
	if err := doc.Decode(&rs); err != nil {
		return "", fmt.Errorf("decode refresh session: %w", err)
	}
	if rs.RevokedAt != nil || !s.now().Before(rs.ExpiresAt) {
		return "", ErrSessionNotFound
	}
	return rs.UserID, nil
}

func (s *DocumentStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.docs.Update(ctx, store.CollectionRefreshSessions, tokenHash, map[string]any{
		"revokedAt": s.now().UTC(),
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}
