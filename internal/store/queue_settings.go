package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kubev2v/workmanager/internal/models"
	srvErrors "github.com/kubev2v/workmanager/pkg/errors"
)

// QueueSettingsStore persists the queuing/processing toggles of each queue.
type QueueSettingsStore struct {
	db QueryInterceptor
}

func NewQueueSettingsStore(db QueryInterceptor) *QueueSettingsStore {
	return &QueueSettingsStore{db: db}
}

func (s *QueueSettingsStore) Get(ctx context.Context, queueID string) (*models.QueueSettings, error) {
	row := s.db.QueryRowContext(ctx, queryGetQueueSettings, queueID)

	var qs models.QueueSettings
	err := row.Scan(&qs.QueueID, &qs.Queuing, &qs.Processing, &qs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, srvErrors.NewQueueSettingsNotFoundError(queueID)
	}
	if err != nil {
		return nil, err
	}
	return &qs, nil
}

func (s *QueueSettingsStore) List(ctx context.Context) ([]models.QueueSettings, error) {
	rows, err := s.db.QueryContext(ctx, queryListQueueSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QueueSettings
	for rows.Next() {
		var qs models.QueueSettings
		if err := rows.Scan(&qs.QueueID, &qs.Queuing, &qs.Processing, &qs.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, qs)
	}
	return out, rows.Err()
}

// Save stores or updates the settings of one queue.
func (s *QueueSettingsStore) Save(ctx context.Context, qs models.QueueSettings) error {
	_, err := s.db.ExecContext(ctx, queryUpsertQueueSettings, qs.QueueID, qs.Queuing, qs.Processing)
	return err
}

func (s *QueueSettingsStore) Delete(ctx context.Context, queueID string) error {
	_, err := s.db.ExecContext(ctx, queryDeleteQueueSettings, queueID)
	return err
}
