package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/domain"
)

const (
	sqlActorColumns = `id, uri, username, domain, display_name, summary, inbox_uri, outbox_uri,
		followers_uri, following_uri, shared_inbox_uri, public_key_pem, private_key_pem,
		follower_count, following_count, status_count, avatar_url, header_url,
		manually_approves, refreshed_at, created_at`

	sqlInsertActor = `INSERT INTO actors(id, uri, username, domain, display_name, summary,
		inbox_uri, outbox_uri, followers_uri, following_uri, shared_inbox_uri,
		public_key_pem, private_key_pem, avatar_url, header_url, manually_approves,
		refreshed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlSelectActorById       = `SELECT ` + sqlActorColumns + ` FROM actors WHERE id = ?`
	sqlSelectActorByURI      = `SELECT ` + sqlActorColumns + ` FROM actors WHERE uri = ?`
	sqlSelectActorByUsername = `SELECT ` + sqlActorColumns + ` FROM actors WHERE username = ? AND domain = ?`

	// Refreshes only protocol-relevant fields and never touches rows
	// that carry a private key: local actors are authoritative.
	sqlRefreshRemoteActor = `UPDATE actors SET display_name = ?, summary = ?, inbox_uri = ?,
		outbox_uri = ?, followers_uri = ?, shared_inbox_uri = ?, public_key_pem = ?,
		avatar_url = ?, header_url = ?, refreshed_at = ?
		WHERE uri = ? AND private_key_pem = ''`

	sqlUpdateActorProfile = `UPDATE actors SET display_name = ?, summary = ?, avatar_url = ?,
		header_url = ? WHERE id = ?`

	sqlAdjustFollowerCount  = `UPDATE actors SET follower_count = follower_count + ? WHERE id = ?`
	sqlAdjustFollowingCount = `UPDATE actors SET following_count = following_count + ? WHERE id = ?`
	sqlAdjustStatusCount    = `UPDATE actors SET status_count = status_count + ? WHERE id = ?`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActor(row rowScanner) (error, *domain.Actor) {
	var acc domain.Actor
	var idStr string
	var refreshedAt sql.NullTime
	err := row.Scan(
		&idStr,
		&acc.URI,
		&acc.Username,
		&acc.Domain,
		&acc.DisplayName,
		&acc.Summary,
		&acc.InboxURI,
		&acc.OutboxURI,
		&acc.FollowersURI,
		&acc.FollowingURI,
		&acc.SharedInboxURI,
		&acc.PublicKeyPem,
		&acc.PrivateKeyPem,
		&acc.FollowerCount,
		&acc.FollowingCount,
		&acc.StatusCount,
		&acc.AvatarURL,
		&acc.HeaderURL,
		&acc.ManuallyApproves,
		&refreshedAt,
		&acc.CreatedAt,
	)
	if err != nil {
		return err, nil
	}
	acc.Id, _ = uuid.Parse(idStr)
	if refreshedAt.Valid {
		acc.RefreshedAt = refreshedAt.Time
	}
	return nil, &acc
}

func (db *DB) CreateActor(acc *domain.Actor) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActor,
			acc.Id.String(),
			acc.URI,
			acc.Username,
			acc.Domain,
			acc.DisplayName,
			acc.Summary,
			acc.InboxURI,
			acc.OutboxURI,
			acc.FollowersURI,
			acc.FollowingURI,
			acc.SharedInboxURI,
			acc.PublicKeyPem,
			acc.PrivateKeyPem,
			acc.AvatarURL,
			acc.HeaderURL,
			acc.ManuallyApproves,
			acc.RefreshedAt,
			acc.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadActorById(id uuid.UUID) (error, *domain.Actor) {
	return scanActor(db.db.QueryRow(sqlSelectActorById, id.String()))
}

func (db *DB) ReadActorByURI(uri string) (error, *domain.Actor) {
	return scanActor(db.db.QueryRow(sqlSelectActorByURI, uri))
}

func (db *DB) ReadActorByUsername(username string, domainName string) (error, *domain.Actor) {
	return scanActor(db.db.QueryRow(sqlSelectActorByUsername, username, domainName))
}

// RefreshRemoteActor rewrites the protocol-relevant fields of a cached
// remote actor. Rows holding a private key are left untouched.
func (db *DB) RefreshRemoteActor(acc *domain.Actor) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlRefreshRemoteActor,
			acc.DisplayName,
			acc.Summary,
			acc.InboxURI,
			acc.OutboxURI,
			acc.FollowersURI,
			acc.SharedInboxURI,
			acc.PublicKeyPem,
			acc.AvatarURL,
			acc.HeaderURL,
			time.Now().UTC(),
			acc.URI,
		)
		return err
	})
}

func (db *DB) UpdateActorProfile(id uuid.UUID, displayName, summary, avatarURL, headerURL string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateActorProfile, displayName, summary, avatarURL, headerURL, id.String())
		return err
	})
}

// AdjustFollowCounters applies the symmetric counter delta for an
// accepted follow edge: following-count on the follower, follower-count
// on the target. Both updates are atomic increments in one transaction.
func (db *DB) AdjustFollowCounters(actorId, targetActorId uuid.UUID, delta int64) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlAdjustFollowingCount, delta, actorId.String()); err != nil {
			return err
		}
		_, err := tx.Exec(sqlAdjustFollowerCount, delta, targetActorId.String())
		return err
	})
}

func (db *DB) AdjustStatusCount(actorId uuid.UUID, delta int64) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAdjustStatusCount, delta, actorId.String())
		return err
	})
}
