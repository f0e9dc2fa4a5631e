package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/domain"
)

const (
	sqlInsertLike = `INSERT OR IGNORE INTO likes(id, actor_id, status_id, uri, created_at)
		VALUES (?, ?, ?, ?, ?)`

	sqlSelectLike = `SELECT id, actor_id, status_id, uri, created_at FROM likes
		WHERE actor_id = ? AND status_id = ?`

	sqlDeleteLike = `DELETE FROM likes WHERE actor_id = ? AND status_id = ?`
)

// CreateLike inserts a like edge. A duplicate (actor, status) pair is a
// no-op and the returned bool reports whether a row was actually added,
// which is what decides the counter bump.
func (db *DB) CreateLike(like *domain.Like) (bool, error) {
	var inserted bool
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlInsertLike,
			like.Id.String(),
			like.ActorId.String(),
			like.StatusId.String(),
			like.URI,
			like.CreatedAt,
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

func (db *DB) ReadLike(actorId, statusId uuid.UUID) (error, *domain.Like) {
	var like domain.Like
	var idStr, actorIdStr, statusIdStr string
	err := db.db.QueryRow(sqlSelectLike, actorId.String(), statusId.String()).Scan(
		&idStr, &actorIdStr, &statusIdStr, &like.URI, &like.CreatedAt)
	if err != nil {
		return err, nil
	}
	like.Id, _ = uuid.Parse(idStr)
	like.ActorId, _ = uuid.Parse(actorIdStr)
	like.StatusId, _ = uuid.Parse(statusIdStr)
	return nil, &like
}

// DeleteLike removes a like edge and reports whether a row existed.
func (db *DB) DeleteLike(actorId, statusId uuid.UUID) (bool, error) {
	var deleted bool
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlDeleteLike, actorId.String(), statusId.String())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	return deleted, err
}
