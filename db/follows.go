package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/domain"
)

const (
	sqlFollowColumns = `id, actor_id, target_actor_id, uri, status, accepted_at, created_at`

	sqlInsertFollow = `INSERT INTO follows(id, actor_id, target_actor_id, uri, status, accepted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	sqlSelectFollowByPair = `SELECT ` + sqlFollowColumns + ` FROM follows
		WHERE actor_id = ? AND target_actor_id = ?`
	sqlSelectFollowByURI = `SELECT ` + sqlFollowColumns + ` FROM follows WHERE uri = ?`

	sqlHasAcceptedFollow = `SELECT EXISTS(SELECT 1 FROM follows
		WHERE actor_id = ? AND target_actor_id = ? AND status = 'accepted')`

	sqlUpdateFollowURI = `UPDATE follows SET uri = ? WHERE id = ?`
	sqlAcceptFollow    = `UPDATE follows SET status = 'accepted', accepted_at = ? WHERE id = ?`
	sqlDeleteFollow    = `DELETE FROM follows WHERE id = ?`

	// Pages are ordered by acceptance time, newest first; the cursor is
	// the id of the last row the caller saw.
	sqlSelectFollowersPage = `SELECT ` + sqlFollowColumns + ` FROM follows
		WHERE target_actor_id = ? AND status = 'accepted'
		AND (? = '' OR (accepted_at, id) < (SELECT accepted_at, id FROM follows WHERE id = ?))
		ORDER BY accepted_at DESC, id DESC LIMIT ?`

	sqlSelectFollowingPage = `SELECT ` + sqlFollowColumns + ` FROM follows
		WHERE actor_id = ? AND status = 'accepted'
		AND (? = '' OR (accepted_at, id) < (SELECT accepted_at, id FROM follows WHERE id = ?))
		ORDER BY accepted_at DESC, id DESC LIMIT ?`
)

func scanFollow(row rowScanner) (error, *domain.Follow) {
	var follow domain.Follow
	var idStr, actorIdStr, targetIdStr string
	var acceptedAt sql.NullTime
	err := row.Scan(
		&idStr,
		&actorIdStr,
		&targetIdStr,
		&follow.URI,
		&follow.Status,
		&acceptedAt,
		&follow.CreatedAt,
	)
	if err != nil {
		return err, nil
	}
	follow.Id, _ = uuid.Parse(idStr)
	follow.ActorId, _ = uuid.Parse(actorIdStr)
	follow.TargetActorId, _ = uuid.Parse(targetIdStr)
	if acceptedAt.Valid {
		t := acceptedAt.Time
		follow.AcceptedAt = &t
	}
	return nil, &follow
}

func (db *DB) CreateFollow(follow *domain.Follow) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		var acceptedAt any
		if follow.AcceptedAt != nil {
			acceptedAt = *follow.AcceptedAt
		}
		_, err := tx.Exec(sqlInsertFollow,
			follow.Id.String(),
			follow.ActorId.String(),
			follow.TargetActorId.String(),
			follow.URI,
			follow.Status,
			acceptedAt,
			follow.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadFollowByPair(actorId, targetActorId uuid.UUID) (error, *domain.Follow) {
	return scanFollow(db.db.QueryRow(sqlSelectFollowByPair, actorId.String(), targetActorId.String()))
}

func (db *DB) ReadFollowByURI(uri string) (error, *domain.Follow) {
	return scanFollow(db.db.QueryRow(sqlSelectFollowByURI, uri))
}

// HasAcceptedFollow reports whether an accepted edge from actorId to
// targetActorId exists. Pending edges do not count.
func (db *DB) HasAcceptedFollow(actorId, targetActorId uuid.UUID) (bool, error) {
	var exists bool
	err := db.db.QueryRow(sqlHasAcceptedFollow, actorId.String(), targetActorId.String()).Scan(&exists)
	return exists, err
}

func (db *DB) UpdateFollowURI(id uuid.UUID, uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateFollowURI, uri, id.String())
		return err
	})
}

func (db *DB) AcceptFollow(id uuid.UUID, acceptedAt time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAcceptFollow, acceptedAt, id.String())
		return err
	})
}

func (db *DB) DeleteFollow(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollow, id.String())
		return err
	})
}

func (db *DB) ReadFollowersPage(targetActorId uuid.UUID, limit int, cursor string) (error, *[]domain.Follow) {
	return db.queryFollows(sqlSelectFollowersPage, targetActorId.String(), cursor, cursor, limit)
}

func (db *DB) ReadFollowingPage(actorId uuid.UUID, limit int, cursor string) (error, *[]domain.Follow) {
	return db.queryFollows(sqlSelectFollowingPage, actorId.String(), cursor, cursor, limit)
}

func (db *DB) queryFollows(query string, args ...any) (error, *[]domain.Follow) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var follows []domain.Follow
	for rows.Next() {
		err, follow := scanFollow(rows)
		if err != nil {
			return err, &follows
		}
		follows = append(follows, *follow)
	}
	if err = rows.Err(); err != nil {
		return err, &follows
	}
	return nil, &follows
}
