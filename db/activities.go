package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/domain"
)

const (
	sqlInsertActivity = `INSERT OR IGNORE INTO activities(id, activity_uri, activity_type,
		actor_uri, object_uri, raw_json, processed, local, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlSelectActivityByURI = `SELECT id, activity_uri, activity_type, actor_uri, object_uri,
		raw_json, processed, local, created_at FROM activities WHERE activity_uri = ?`

	sqlMarkActivityProcessed = `UPDATE activities SET processed = 1 WHERE activity_uri = ?`
)

// LogActivity records an activity by its URI. Replays of the same URI
// are ignored; the returned bool is false for a replay.
func (db *DB) LogActivity(act *domain.Activity) (bool, error) {
	var inserted bool
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlInsertActivity,
			act.Id.String(),
			act.ActivityURI,
			act.ActivityType,
			act.ActorURI,
			act.ObjectURI,
			act.RawJSON,
			act.Processed,
			act.Local,
			act.CreatedAt,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		inserted = n > 0
		return err
	})
	return inserted, err
}

func (db *DB) ReadActivityByURI(uri string) (error, *domain.Activity) {
	var act domain.Activity
	var idStr string
	err := db.db.QueryRow(sqlSelectActivityByURI, uri).Scan(
		&idStr,
		&act.ActivityURI,
		&act.ActivityType,
		&act.ActorURI,
		&act.ObjectURI,
		&act.RawJSON,
		&act.Processed,
		&act.Local,
		&act.CreatedAt,
	)
	if err != nil {
		return err, nil
	}
	act.Id, _ = uuid.Parse(idStr)
	return nil, &act
}

func (db *DB) MarkActivityProcessed(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlMarkActivityProcessed, uri)
		return err
	})
}
