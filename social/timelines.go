package social

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/domain"
	"github.com/mklatt/dorfplatz/util"
)

const (
	defaultTimelineLimit = 20
	maxTimelineLimit     = 40
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultTimelineLimit
	}
	if limit > maxTimelineLimit {
		return maxTimelineLimit
	}
	return limit
}

func entryId(e domain.TimelineEntry) string {
	return e.Id.String()
}

// HomeTimeline is the viewer's followee feed: top-level public and
// unlisted posts from the viewer and everyone they follow.
func HomeTimeline(database *db.DB, viewerId uuid.UUID, limit int, cursor string) (domain.Page[domain.TimelineEntry], error) {
	limit = clampLimit(limit)
	err, rows := database.ReadHomeTimeline(viewerId, limit+1, cursor)
	if err != nil {
		return domain.Page[domain.TimelineEntry]{}, err
	}
	return domain.MakePage(*rows, limit, entryId), nil
}

// PublicTimeline is the anonymous local feed: public posts by local
// actors. The viewer id may be uuid.Nil, in which case no liked bits
// are set.
func PublicTimeline(database *db.DB, conf *util.AppConfig, viewerId uuid.UUID, limit int, cursor string) (domain.Page[domain.TimelineEntry], error) {
	limit = clampLimit(limit)
	err, rows := database.ReadPublicTimeline(conf.Conf.Domain, viewerId, limit+1, cursor)
	if err != nil {
		return domain.Page[domain.TimelineEntry]{}, err
	}
	return domain.MakePage(*rows, limit, entryId), nil
}

// ActorTimeline is an actor's own posts, never including direct
// messages, with replies behind a flag.
func ActorTimeline(database *db.DB, actorId, viewerId uuid.UUID, includeReplies bool, limit int, cursor string) (domain.Page[domain.TimelineEntry], error) {
	limit = clampLimit(limit)
	err, rows := database.ReadActorTimeline(actorId, viewerId, includeReplies, limit+1, cursor)
	if err != nil {
		return domain.Page[domain.TimelineEntry]{}, err
	}
	return domain.MakePage(*rows, limit, entryId), nil
}

// ReceivedDMs lists direct messages addressed to the viewer.
func ReceivedDMs(database *db.DB, viewerId uuid.UUID, limit int, cursor string) (domain.Page[domain.TimelineEntry], error) {
	err, viewer := database.ReadActorById(viewerId)
	if err != nil {
		return domain.Page[domain.TimelineEntry]{}, fmt.Errorf("viewer not found: %w", err)
	}
	limit = clampLimit(limit)
	err, rows := database.ReadReceivedDMs(viewerId, viewer.URI, limit+1, cursor)
	if err != nil {
		return domain.Page[domain.TimelineEntry]{}, err
	}
	return domain.MakePage(*rows, limit, entryId), nil
}

// SentDMs lists direct messages the viewer authored.
func SentDMs(database *db.DB, viewerId uuid.UUID, limit int, cursor string) (domain.Page[domain.TimelineEntry], error) {
	limit = clampLimit(limit)
	err, rows := database.ReadSentDMs(viewerId, limit+1, cursor)
	if err != nil {
		return domain.Page[domain.TimelineEntry]{}, err
	}
	return domain.MakePage(*rows, limit, entryId), nil
}

// MentionsTimeline lists statuses that address the viewer: direct
// messages plus anything carrying a mention tag for them.
func MentionsTimeline(database *db.DB, viewerId uuid.UUID, limit int, cursor string) (domain.Page[domain.TimelineEntry], error) {
	err, viewer := database.ReadActorById(viewerId)
	if err != nil {
		return domain.Page[domain.TimelineEntry]{}, fmt.Errorf("viewer not found: %w", err)
	}
	limit = clampLimit(limit)
	err, rows := database.ReadMentionsTimeline(viewerId, viewer.URI, limit+1, cursor)
	if err != nil {
		return domain.Page[domain.TimelineEntry]{}, err
	}
	return domain.MakePage(*rows, limit, entryId), nil
}

// Replies lists the published replies to a status, oldest first.
func Replies(database *db.DB, statusId uuid.UUID) ([]domain.Status, error) {
	err, rows := database.ReadReplies(statusId)
	if err != nil {
		return nil, err
	}
	return *rows, nil
}
