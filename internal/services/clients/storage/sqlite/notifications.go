package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gclavel/assurvie/internal/services/clients/storage"
)

func normalizeNotification(record storage.NotificationRecord) (storage.NotificationRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.Recipient = strings.TrimSpace(record.Recipient)
	if record.ID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("notification id is required")
	}
	if record.Channel == "" {
		return storage.NotificationRecord{}, fmt.Errorf("notification channel is required")
	}
	if record.Status == "" {
		return storage.NotificationRecord{}, fmt.Errorf("notification status is required")
	}
	if record.MetadataJSON == "" {
		record.MetadataJSON = "{}"
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return storage.NotificationRecord{}, fmt.Errorf("notification timestamps are required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

// PutNotification inserts one notification audit record.
func (s *Store) PutNotification(ctx context.Context, record storage.NotificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record, err := normalizeNotification(record)
	if err != nil {
		return err
	}
	var sentAt any
	if record.SentAt != nil {
		sentAt = toMillis(*record.SentAt)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO notifications (id, channel, recipient, subject, body, status, sent_at, error, metadata_json, advisor_id, dossier_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.Channel,
		record.Recipient,
		record.Subject,
		record.Body,
		record.Status,
		sentAt,
		record.Error,
		record.MetadataJSON,
		record.AdvisorID,
		record.DossierID,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// GetNotification loads one notification audit record.
func (s *Store) GetNotification(ctx context.Context, id string) (storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.NotificationRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, channel, recipient, subject, body, status, sent_at, error, metadata_json, advisor_id, dossier_id, created_at, updated_at
FROM notifications
WHERE id = ?
`, id)
	record, err := scanNotification(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotificationRecord{}, storage.ErrNotFound
		}
		return storage.NotificationRecord{}, fmt.Errorf("get notification: %w", err)
	}
	return record, nil
}

// UpdateNotification rewrites one notification's delivery outcome fields.
func (s *Store) UpdateNotification(ctx context.Context, record storage.NotificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record, err := normalizeNotification(record)
	if err != nil {
		return err
	}
	var sentAt any
	if record.SentAt != nil {
		sentAt = toMillis(*record.SentAt)
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE notifications
SET subject = ?, body = ?, status = ?, sent_at = ?, error = ?, metadata_json = ?, updated_at = ?
WHERE id = ?
`,
		record.Subject,
		record.Body,
		record.Status,
		sentAt,
		record.Error,
		record.MetadataJSON,
		toMillis(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update notification rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListNotifications returns one page of audit records matching the filter,
// newest first, with the total count.
func (s *Store) ListNotifications(ctx context.Context, filter storage.NotificationFilter, page, perPage int) (storage.NotificationPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.NotificationPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return storage.NotificationPage{}, fmt.Errorf("per page must be greater than zero")
	}

	where, args := notificationFilterClause(filter)

	var total int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(1) FROM notifications"+where, args...).Scan(&total); err != nil {
		return storage.NotificationPage{}, fmt.Errorf("count notifications: %w", err)
	}

	query := `
SELECT id, channel, recipient, subject, body, status, sent_at, error, metadata_json, advisor_id, dossier_id, created_at, updated_at
FROM notifications` + where + `
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?
`
	rows, err := s.sqlDB.QueryContext(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return storage.NotificationPage{}, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	result := storage.NotificationPage{TotalCount: total}
	for rows.Next() {
		record, scanErr := scanNotification(rows.Scan)
		if scanErr != nil {
			return storage.NotificationPage{}, fmt.Errorf("scan notification row: %w", scanErr)
		}
		result.Notifications = append(result.Notifications, record)
	}
	if err := rows.Err(); err != nil {
		return storage.NotificationPage{}, fmt.Errorf("iterate notification rows: %w", err)
	}
	return result, nil
}

// ListStalePendingNotifications returns pending records last updated before
// the cutoff, oldest first, capped at limit.
func (s *Store) ListStalePendingNotifications(ctx context.Context, cutoff time.Time, limit int) ([]storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, channel, recipient, subject, body, status, sent_at, error, metadata_json, advisor_id, dossier_id, created_at, updated_at
FROM notifications
WHERE status = ? AND updated_at < ?
ORDER BY updated_at ASC, id ASC
LIMIT ?
`, storage.NotificationStatusPending, toMillis(cutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending notifications: %w", err)
	}
	defer rows.Close()

	var records []storage.NotificationRecord
	for rows.Next() {
		record, scanErr := scanNotification(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan notification row: %w", scanErr)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}
	return records, nil
}

// DeleteNotification removes one audit record.
func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete notification rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanNotification(scan scanner) (storage.NotificationRecord, error) {
	var record storage.NotificationRecord
	var sentAt sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(
		&record.ID,
		&record.Channel,
		&record.Recipient,
		&record.Subject,
		&record.Body,
		&record.Status,
		&sentAt,
		&record.Error,
		&record.MetadataJSON,
		&record.AdvisorID,
		&record.DossierID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.NotificationRecord{}, err
	}
	if sentAt.Valid {
		value := fromMillis(sentAt.Int64)
		record.SentAt = &value
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func notificationFilterClause(filter storage.NotificationFilter) (string, []any) {
	var conditions []string
	var args []any
	if filter.Channel != "" {
		conditions = append(conditions, "channel = ?")
		args = append(args, filter.Channel)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if advisorID := strings.TrimSpace(filter.AdvisorID); advisorID != "" {
		conditions = append(conditions, "advisor_id = ?")
		args = append(args, advisorID)
	}
	if dossierID := strings.TrimSpace(filter.DossierID); dossierID != "" {
		conditions = append(conditions, "dossier_id = ?")
		args = append(args, dossierID)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, toMillis(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, toMillis(filter.To))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
