package database

import (
	"context"
	"encoding/json"
	"serwer-gabinetu/internal/models"

	"github.com/google/uuid"
)

type AppendAccessLogParams struct {
	ShareID      uuid.UUID
	Action       string
	ResourceType *string
	ResourceID   *string
	OldData      json.RawMessage
	NewData      json.RawMessage
	ClientIP     *string
	UserAgent    *string
}

// AppendAccessLog is insert-only. Audit rows are never updated or deleted;
// the table carries no UPDATE/DELETE queries at all.
func (q *Queries) AppendAccessLog(ctx context.Context, arg AppendAccessLogParams) error {
	query := `
		INSERT INTO access_logs (share_id, action, resource_type, resource_id, old_data, new_data, client_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.db.Exec(ctx, query,
		arg.ShareID,
		arg.Action,
		arg.ResourceType,
		arg.ResourceID,
		arg.OldData,
		arg.NewData,
		arg.ClientIP,
		arg.UserAgent,
	)
	return err
}

func (q *Queries) ListAccessLogs(ctx context.Context, shareID uuid.UUID, limit int, offset int) ([]models.AccessLog, error) {
	query := `
		SELECT id, share_id, action, resource_type, resource_id, old_data, new_data, client_ip, user_agent, created_at
		FROM access_logs
		WHERE share_id = $1
		ORDER BY id ASC LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, shareID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AccessLog
	for rows.Next() {
		var entry models.AccessLog
		err := rows.Scan(
			&entry.ID,
			&entry.ShareID,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.OldData,
			&entry.NewData,
			&entry.ClientIP,
			&entry.UserAgent,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if logs == nil {
		return []models.AccessLog{}, nil
	}

	return logs, nil
}
