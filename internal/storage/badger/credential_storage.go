package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peritus-ai/peritus/internal/interfaces"
	"github.com/peritus-ai/peritus/internal/models"
)

// CredentialStorage implements the CredentialStorage interface for Badger
type CredentialStorage struct {
	db     *BadgerDB
	locks  *keyedMutex
	logger arbor.ILogger
}

// NewCredentialStorage creates a new CredentialStorage instance
func NewCredentialStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CredentialStorage {
	return &CredentialStorage{
		db:     db,
		locks:  newKeyedMutex(),
		logger: logger,
	}
}

// SaveCredential inserts or updates a credential, preserving CreatedAt on
// update
func (s *CredentialStorage) SaveCredential(ctx context.Context, cred *models.Credential) error {
	owner := cred.UserID
	if cred.Scope == models.ScopeSystem {
		owner = string(models.ScopeSystem)
	}
	cred.Key = models.CredentialKey(owner, cred.Provider)

	unlock := s.locks.Lock(cred.Key)
	defer unlock()

	now := time.Now()
	cred.UpdatedAt = now
	cred.CreatedAt = now

	var existing models.Credential
	if err := s.db.Store().Get(cred.Key, &existing); err == nil {
		cred.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(cred.Key, cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// GetCredential retrieves a credential by owner ("system" or a user ID)
// and provider
func (s *CredentialStorage) GetCredential(ctx context.Context, owner, provider string) (*models.Credential, error) {
	var cred models.Credential
	err := s.db.Store().Get(models.CredentialKey(owner, provider), &cred)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

// ListCredentials returns all credentials for an owner
func (s *CredentialStorage) ListCredentials(ctx context.Context, owner string) ([]*models.Credential, error) {
	userID := owner
	if owner == string(models.ScopeSystem) {
		userID = ""
	}

	var creds []*models.Credential
	err := s.db.Store().Find(&creds, badgerhold.Where("UserID").Eq(userID).SortBy("Provider"))
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// DeleteCredential removes a credential record
func (s *CredentialStorage) DeleteCredential(ctx context.Context, owner, provider string) error {
	key := models.CredentialKey(owner, provider)

	unlock := s.locks.Lock(key)
	defer unlock()

	err := s.db.Store().Delete(key, &models.Credential{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrCredentialNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// DeleteCredentialsByUser removes all of a user's credentials (cascade)
func (s *CredentialStorage) DeleteCredentialsByUser(ctx context.Context, userID string) error {
	err := s.db.Store().DeleteMatching(&models.Credential{}, badgerhold.Where("UserID").Eq(userID))
	if err != nil {
		return fmt.Errorf("failed to delete credentials for user: %w", err)
	}
	return nil
}
