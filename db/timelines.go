package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/domain"
)

// Timeline queries are plain predicates over status_recipients; the
// public collection URI is matched as an exact string. Every view
// filters out drafts and expired rows, newest first, with a row-value
// keyset cursor on (created_at, id).

const (
	sqlLikedColumn = `, EXISTS(SELECT 1 FROM likes l WHERE l.actor_id = ? AND l.status_id = s.id) AS liked`

	sqlPublicAnywhere = `EXISTS(SELECT 1 FROM status_recipients pr
		WHERE pr.status_id = s.id AND pr.uri = '` + domain.PublicCollection + `')`

	sqlPublicInTo = `EXISTS(SELECT 1 FROM status_recipients pr
		WHERE pr.status_id = s.id AND pr.kind = 'to' AND pr.uri = '` + domain.PublicCollection + `')`

	sqlTimelineSuffix = ` AND s.published_at IS NOT NULL
		AND (s.expires_at IS NULL OR s.expires_at > ?)
		AND (? = '' OR (s.created_at, s.id) < (SELECT created_at, id FROM statuses WHERE id = ?))
		ORDER BY s.created_at DESC, s.id DESC LIMIT ?`

	// Home: top-level posts with a public audience, from the viewer or
	// anyone the viewer has an accepted follow towards.
	sqlHomeTimeline = `SELECT ` + sqlStatusColumns + sqlLikedColumn + ` FROM statuses s
		WHERE s.in_reply_to_id IS NULL
		AND ` + sqlPublicAnywhere + `
		AND (s.actor_id = ? OR EXISTS(SELECT 1 FROM follows f
			WHERE f.actor_id = ? AND f.target_actor_id = s.actor_id AND f.status = 'accepted'))` +
		sqlTimelineSuffix

	// Public: top-level, public visibility (public collection addressed
	// in "to", not merely cc'd), local authors only.
	sqlPublicTimeline = `SELECT ` + sqlStatusColumns + sqlLikedColumn + ` FROM statuses s
		WHERE s.in_reply_to_id IS NULL
		AND ` + sqlPublicInTo + `
		AND EXISTS(SELECT 1 FROM actors a WHERE a.id = s.actor_id AND a.domain = ?)` +
		sqlTimelineSuffix

	// An actor's posts never include direct messages, whoever asks.
	sqlActorTimeline = `SELECT ` + sqlStatusColumns + sqlLikedColumn + ` FROM statuses s
		WHERE s.actor_id = ?
		AND (? = 1 OR s.in_reply_to_id IS NULL)
		AND ` + sqlPublicAnywhere +
		sqlTimelineSuffix

	sqlReceivedDMs = `SELECT ` + sqlStatusColumns + sqlLikedColumn + ` FROM statuses s
		WHERE NOT ` + sqlPublicAnywhere + `
		AND EXISTS(SELECT 1 FROM status_recipients r
			WHERE r.status_id = s.id AND r.kind = 'to' AND r.uri = ?)
		AND s.actor_id != ?` +
		sqlTimelineSuffix

	sqlSentDMs = `SELECT ` + sqlStatusColumns + sqlLikedColumn + ` FROM statuses s
		WHERE NOT ` + sqlPublicAnywhere + `
		AND s.actor_id = ?` +
		sqlTimelineSuffix

	// Mentions: direct messages addressed to the viewer plus any status
	// carrying a Mention tag whose target is the viewer's URI.
	sqlMentionsTimeline = `SELECT ` + sqlStatusColumns + sqlLikedColumn + ` FROM statuses s
		WHERE s.actor_id != ?
		AND ((NOT ` + sqlPublicAnywhere + `
			AND EXISTS(SELECT 1 FROM status_recipients r
				WHERE r.status_id = s.id AND r.kind = 'to' AND r.uri = ?))
		OR EXISTS(SELECT 1 FROM status_tags t
			WHERE t.status_id = s.id AND t.type = '` + domain.TagMention + `' AND t.target_uri = ?))` +
		sqlTimelineSuffix
)

func (db *DB) ReadHomeTimeline(viewerId uuid.UUID, limit int, cursor string) (error, *[]domain.TimelineEntry) {
	viewer := viewerId.String()
	return db.queryTimeline(sqlHomeTimeline,
		viewer, viewer, viewer, time.Now().UTC(), cursor, cursor, limit)
}

func (db *DB) ReadPublicTimeline(localDomain string, viewerId uuid.UUID, limit int, cursor string) (error, *[]domain.TimelineEntry) {
	return db.queryTimeline(sqlPublicTimeline,
		viewerId.String(), localDomain, time.Now().UTC(), cursor, cursor, limit)
}

func (db *DB) ReadActorTimeline(actorId, viewerId uuid.UUID, includeReplies bool, limit int, cursor string) (error, *[]domain.TimelineEntry) {
	withReplies := 0
	if includeReplies {
		withReplies = 1
	}
	return db.queryTimeline(sqlActorTimeline,
		viewerId.String(), actorId.String(), withReplies, time.Now().UTC(), cursor, cursor, limit)
}

func (db *DB) ReadReceivedDMs(viewerId uuid.UUID, viewerURI string, limit int, cursor string) (error, *[]domain.TimelineEntry) {
	return db.queryTimeline(sqlReceivedDMs,
		viewerId.String(), viewerURI, viewerId.String(), time.Now().UTC(), cursor, cursor, limit)
}

func (db *DB) ReadSentDMs(viewerId uuid.UUID, limit int, cursor string) (error, *[]domain.TimelineEntry) {
	viewer := viewerId.String()
	return db.queryTimeline(sqlSentDMs,
		viewer, viewer, time.Now().UTC(), cursor, cursor, limit)
}

func (db *DB) ReadMentionsTimeline(viewerId uuid.UUID, viewerURI string, limit int, cursor string) (error, *[]domain.TimelineEntry) {
	return db.queryTimeline(sqlMentionsTimeline,
		viewerId.String(), viewerId.String(), viewerURI, viewerURI, time.Now().UTC(), cursor, cursor, limit)
}

func (db *DB) queryTimeline(query string, args ...any) (error, *[]domain.TimelineEntry) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var entries []domain.TimelineEntry
	for rows.Next() {
		var entry domain.TimelineEntry
		err, status := scanTimelineRow(rows, &entry.Liked)
		if err != nil {
			return err, &entries
		}
		entry.Status = *status
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return err, &entries
	}
	for i := range entries {
		if err := db.loadRecipients(&entries[i].Status); err != nil {
			return err, &entries
		}
	}
	return nil, &entries
}

func scanTimelineRow(row rowScanner, liked *bool) (error, *domain.Status) {
	var status domain.Status
	var idStr, actorIdStr string
	var publishedAt, expiresAt sql.NullTime
	var inReplyToId, inReplyToURI sql.NullString
	var likedInt int64
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
		&likedInt,
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
	*liked = likedInt != 0
	return nil, &status
}
