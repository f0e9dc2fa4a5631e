package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/domain"
)

const (
	sqlStatusColumns = `s.id, s.actor_id, s.uri, s.content, s.content_warning, s.object_type,
		s.published_at, s.in_reply_to_id, s.in_reply_to_uri, s.like_count, s.reply_count,
		s.expires_at, s.created_at`

	sqlInsertStatus = `INSERT INTO statuses(id, actor_id, uri, content, content_warning, object_type,
		published_at, in_reply_to_id, in_reply_to_uri, like_count, reply_count, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`

	sqlInsertRecipient = `INSERT OR IGNORE INTO status_recipients(status_id, kind, uri) VALUES (?, ?, ?)`

	sqlInsertAttachment = `INSERT INTO attachments(id, status_id, type, media_type, url, name, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlInsertTag = `INSERT INTO status_tags(id, status_id, type, target_uri, name) VALUES (?, ?, ?, ?, ?)`

	sqlSelectStatusById  = `SELECT ` + sqlStatusColumns + ` FROM statuses s WHERE s.id = ?`
	sqlSelectStatusByURI = `SELECT ` + sqlStatusColumns + ` FROM statuses s WHERE s.uri = ?`

	// Replies are a conversation, so they read oldest first.
	sqlSelectReplies = `SELECT ` + sqlStatusColumns + ` FROM statuses s
		WHERE s.in_reply_to_id = ? AND s.published_at IS NOT NULL
		AND (s.expires_at IS NULL OR s.expires_at > ?)
		ORDER BY s.created_at ASC, s.id ASC`

	sqlPublishStatus = `UPDATE statuses SET published_at = ? WHERE id = ? AND published_at IS NULL`

	sqlDeleteStatus           = `DELETE FROM statuses WHERE id = ?`
	sqlDeleteStatusRecipients = `DELETE FROM status_recipients WHERE status_id = ?`
	sqlDeleteStatusTags       = `DELETE FROM status_tags WHERE status_id = ?`
	sqlDeleteStatusAttach     = `DELETE FROM attachments WHERE status_id = ?`
	sqlDeleteStatusLikes      = `DELETE FROM likes WHERE status_id = ?`

	sqlSelectRecipients  = `SELECT kind, uri FROM status_recipients WHERE status_id = ? ORDER BY rowid`
	sqlSelectAttachments = `SELECT id, status_id, type, media_type, url, name, width, height, created_at
		FROM attachments WHERE status_id = ? ORDER BY created_at ASC`
	sqlSelectTags = `SELECT id, status_id, type, target_uri, name FROM status_tags WHERE status_id = ?`

	sqlAdjustLikeCount  = `UPDATE statuses SET like_count = like_count + ? WHERE id = ?`
	sqlAdjustReplyCount = `UPDATE statuses SET reply_count = reply_count + ? WHERE id = ?`
)

func scanStatus(row rowScanner) (error, *domain.Status) {
	var status domain.Status
	var idStr, actorIdStr string
	var publishedAt, expiresAt sql.NullTime
	var inReplyToId, inReplyToURI sql.NullString
	err := row.Scan(
		&idStr,
		&actorIdStr,
		&status.URI,
		&status.Content,
		&status.ContentWarning,
		&status.ObjectType,
		&publishedAt,
		&inReplyToId,
		&inReplyToURI,
		&status.LikeCount,
		&status.ReplyCount,
		&expiresAt,
		&status.CreatedAt,
	)
	if err != nil {
		return err, nil
	}
	status.Id, _ = uuid.Parse(idStr)
	status.ActorId, _ = uuid.Parse(actorIdStr)
	if publishedAt.Valid {
		t := publishedAt.Time
		status.PublishedAt = &t
	}
	if inReplyToId.Valid {
		parsed, err := uuid.Parse(inReplyToId.String)
		if err == nil {
			status.InReplyToId = &parsed
		}
	}
	if inReplyToURI.Valid {
		status.InReplyToURI = inReplyToURI.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		status.ExpiresAt = &t
	}
	return nil, &status
}

// CreateStatus inserts a status with its recipient rows, attachments and
// tags in one transaction. Recipient rows are what the timeline queries
// run against, so a status without them is invisible everywhere.
func (db *DB) CreateStatus(status *domain.Status, attachments []domain.Attachment, tags []domain.Tag) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		var publishedAt, expiresAt, inReplyToId any
		if status.PublishedAt != nil {
			publishedAt = *status.PublishedAt
		}
		if status.ExpiresAt != nil {
			expiresAt = *status.ExpiresAt
		}
		if status.InReplyToId != nil {
			inReplyToId = status.InReplyToId.String()
		}
		_, err := tx.Exec(sqlInsertStatus,
			status.Id.String(),
			status.ActorId.String(),
			status.URI,
			status.Content,
			status.ContentWarning,
			status.ObjectType,
			publishedAt,
			inReplyToId,
			status.InReplyToURI,
			expiresAt,
			status.CreatedAt,
		)
		if err != nil {
			return err
		}

		for _, uri := range status.RecipientTo {
			if _, err := tx.Exec(sqlInsertRecipient, status.Id.String(), domain.RecipientTo, uri); err != nil {
				return err
			}
		}
		for _, uri := range status.RecipientCc {
			if _, err := tx.Exec(sqlInsertRecipient, status.Id.String(), domain.RecipientCc, uri); err != nil {
				return err
			}
		}
		for _, att := range attachments {
			if _, err := tx.Exec(sqlInsertAttachment,
				att.Id.String(), status.Id.String(), att.Type, att.MediaType, att.URL,
				att.Name, att.Width, att.Height, att.CreatedAt); err != nil {
				return err
			}
		}
		for _, tag := range tags {
			if _, err := tx.Exec(sqlInsertTag,
				tag.Id.String(), status.Id.String(), tag.Type, tag.TargetURI, tag.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) ReadStatusById(id uuid.UUID) (error, *domain.Status) {
	err, status := scanStatus(db.db.QueryRow(sqlSelectStatusById, id.String()))
	if err != nil {
		return err, nil
	}
	return db.loadRecipients(status), status
}

func (db *DB) ReadStatusByURI(uri string) (error, *domain.Status) {
	err, status := scanStatus(db.db.QueryRow(sqlSelectStatusByURI, uri))
	if err != nil {
		return err, nil
	}
	return db.loadRecipients(status), status
}

func (db *DB) loadRecipients(status *domain.Status) error {
	rows, err := db.db.Query(sqlSelectRecipients, status.Id.String())
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var kind, uri string
		if err := rows.Scan(&kind, &uri); err != nil {
			return err
		}
		switch kind {
		case domain.RecipientTo:
			status.RecipientTo = append(status.RecipientTo, uri)
		case domain.RecipientCc:
			status.RecipientCc = append(status.RecipientCc, uri)
		}
	}
	return rows.Err()
}

// ReadReplies returns published, unexpired replies to a status, oldest
// first.
func (db *DB) ReadReplies(statusId uuid.UUID) (error, *[]domain.Status) {
	rows, err := db.db.Query(sqlSelectReplies, statusId.String(), time.Now().UTC())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var statuses []domain.Status
	for rows.Next() {
		err, status := scanStatus(rows)
		if err != nil {
			return err, &statuses
		}
		statuses = append(statuses, *status)
	}
	if err = rows.Err(); err != nil {
		return err, &statuses
	}
	for i := range statuses {
		if err := db.loadRecipients(&statuses[i]); err != nil {
			return err, &statuses
		}
	}
	return nil, &statuses
}

// PublishStatus stamps a draft's published_at. Already-published rows
// are left alone so the timestamp never moves.
func (db *DB) PublishStatus(id uuid.UUID, publishedAt time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlPublishStatus, publishedAt, id.String())
		return err
	})
}

// DeleteStatus removes a status and its dependent rows.
func (db *DB) DeleteStatus(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		for _, query := range []string{
			sqlDeleteStatusRecipients,
			sqlDeleteStatusTags,
			sqlDeleteStatusAttach,
			sqlDeleteStatusLikes,
			sqlDeleteStatus,
		} {
			if _, err := tx.Exec(query, id.String()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) ReadAttachments(statusId uuid.UUID) (error, *[]domain.Attachment) {
	rows, err := db.db.Query(sqlSelectAttachments, statusId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var attachments []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		var idStr, statusIdStr string
		if err := rows.Scan(&idStr, &statusIdStr, &att.Type, &att.MediaType, &att.URL,
			&att.Name, &att.Width, &att.Height, &att.CreatedAt); err != nil {
			return err, &attachments
		}
		att.Id, _ = uuid.Parse(idStr)
		att.StatusId, _ = uuid.Parse(statusIdStr)
		attachments = append(attachments, att)
	}
	return rows.Err(), &attachments
}

func (db *DB) ReadTags(statusId uuid.UUID) (error, *[]domain.Tag) {
	rows, err := db.db.Query(sqlSelectTags, statusId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		var idStr, statusIdStr string
		if err := rows.Scan(&idStr, &statusIdStr, &tag.Type, &tag.TargetURI, &tag.Name); err != nil {
			return err, &tags
		}
		tag.Id, _ = uuid.Parse(idStr)
		tag.StatusId, _ = uuid.Parse(statusIdStr)
		tags = append(tags, tag)
	}
	return rows.Err(), &tags
}

func (db *DB) AdjustLikeCount(statusId uuid.UUID, delta int) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAdjustLikeCount, delta, statusId.String())
		return err
	})
}

func (db *DB) AdjustReplyCount(statusId uuid.UUID, delta int) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAdjustReplyCount, delta, statusId.String())
		return err
	})
}
