package store

import "database/sql"

// Store provides access to all storage repositories.
type Store struct {
	db            *sql.DB
	history       *HistoryStore
	queueSettings *QueueSettingsStore
	tx            *TxManager
}

func NewStore(db *sql.DB) *Store {
	qi := newLoggingInterceptor(db)
	return &Store{
		db:            db,
		history:       NewHistoryStore(qi),
		queueSettings: NewQueueSettingsStore(qi),
		tx:            NewTxManager(db),
	}
}

func (s *Store) History() *HistoryStore {
	return s.history
}

func (s *Store) QueueSettings() *QueueSettingsStore {
	return s.queueSettings
}

// Tx returns the transaction manager shared by every sub-store.
func (s *Store) Tx() *TxManager {
	return s.tx
}

func (s *Store) Close() error {
	return s.db.Close()
}
