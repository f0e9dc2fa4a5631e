package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/domain"
)

const (
	sqlEnqueueDelivery = `INSERT INTO delivery_queue(id, inbox_uri, activity_json, attempts,
		next_retry_at, created_at) VALUES (?, ?, ?, 0, ?, ?)`

	sqlSelectDueDeliveries = `SELECT id, inbox_uri, activity_json, attempts, next_retry_at, created_at
		FROM delivery_queue WHERE next_retry_at <= ? ORDER BY next_retry_at ASC LIMIT ?`

	sqlRescheduleDelivery = `UPDATE delivery_queue SET attempts = attempts + 1, next_retry_at = ?
		WHERE id = ?`

	sqlDeleteDelivery = `DELETE FROM delivery_queue WHERE id = ?`
)

func (db *DB) EnqueueDelivery(item *domain.DeliveryItem) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlEnqueueDelivery,
			item.Id.String(),
			item.InboxURI,
			item.ActivityJSON,
			item.NextRetryAt,
			item.CreatedAt,
		)
		return err
	})
}

// ReadDueDeliveries returns queue items whose retry time has passed,
// oldest first.
func (db *DB) ReadDueDeliveries(now time.Time, limit int) (error, *[]domain.DeliveryItem) {
	rows, err := db.db.Query(sqlSelectDueDeliveries, now, limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var items []domain.DeliveryItem
	for rows.Next() {
		var item domain.DeliveryItem
		var idStr string
		if err := rows.Scan(&idStr, &item.InboxURI, &item.ActivityJSON,
			&item.Attempts, &item.NextRetryAt, &item.CreatedAt); err != nil {
			return err, &items
		}
		item.Id, _ = uuid.Parse(idStr)
		items = append(items, item)
	}
	return rows.Err(), &items
}

func (db *DB) RescheduleDelivery(id uuid.UUID, nextRetryAt time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlRescheduleDelivery, nextRetryAt, id.String())
		return err
	})
}

func (db *DB) DeleteDelivery(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteDelivery, id.String())
		return err
	})
}
