package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/peritus-ai/peritus/internal/common"
	"github.com/peritus-ai/peritus/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	user       interfaces.UserStorage
	dataset    interfaces.DatasetStorage
	expert     interfaces.ExpertStorage
	credential interfaces.CredentialStorage
	chunk      interfaces.ChunkStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		user:       NewUserStorage(db, logger),
		dataset:    NewDatasetStorage(db, logger),
		expert:     NewExpertStorage(db, logger),
		credential: NewCredentialStorage(db, logger),
		chunk:      NewChunkStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// UserStorage returns the User storage interface
func (m *Manager) UserStorage() interfaces.UserStorage {
	return m.user
}

// DatasetStorage returns the Dataset storage interface
func (m *Manager) DatasetStorage() interfaces.DatasetStorage {
	return m.dataset
}

// ExpertStorage returns the Expert storage interface
func (m *Manager) ExpertStorage() interfaces.ExpertStorage {
	return m.expert
}

// CredentialStorage returns the Credential storage interface
func (m *Manager) CredentialStorage() interfaces.CredentialStorage {
	return m.credential
}

// ChunkStorage returns the index chunk storage interface
func (m *Manager) ChunkStorage() interfaces.ChunkStorage {
	return m.chunk
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
