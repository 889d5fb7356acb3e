package store

// Queue settings queries
const (
	queryGetQueueSettings = `
		SELECT queue_id, queuing, processing, updated_at
		FROM queue_settings WHERE queue_id = ?`

	queryListQueueSettings = `
		SELECT queue_id, queuing, processing, updated_at
		FROM queue_settings ORDER BY queue_id`

	queryUpsertQueueSettings = `
		INSERT INTO queue_settings (queue_id, queuing, processing, updated_at)
		VALUES (?, ?, ?, now())
		ON CONFLICT (queue_id) DO UPDATE SET
			queuing = EXCLUDED.queuing,
			processing = EXCLUDED.processing,
			updated_at = now()`

	queryDeleteQueueSettings = `DELETE FROM queue_settings WHERE queue_id = ?`
)

const historyTable = "work_history"

var historyColumns = []string{
	"work_id",
	"queue_id",
	"category",
	"kind",
	"state",
	"error",
	"scheduled_at",
	"started_at",
	"completed_at",
}
