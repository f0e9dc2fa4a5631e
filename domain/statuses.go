package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
	VisibilityPrivate  = "private"
	VisibilityDirect   = "direct"
)

// MaxStatusLength is the hard limit on status content, in characters of
// the raw (pre-rendering) input.
const MaxStatusLength = 5000

// Recipient list kinds as stored per status.
const (
	RecipientTo = "to"
	RecipientCc = "cc"
)

// Status is a post. RecipientTo/RecipientCc fully determine the
// visibility class; PublishedAt == nil means draft, never distributed.
type Status struct {
	Id             uuid.UUID
	ActorId        uuid.UUID
	URI            string
	Content        string
	ContentWarning string
	ObjectType     string
	PublishedAt    *time.Time
	InReplyToId    *uuid.UUID
	InReplyToURI   string
	RecipientTo    []string
	RecipientCc    []string
	LikeCount      int64
	ReplyCount     int64
	ExpiresAt      *time.Time
	CreatedAt      time.Time
}

// Direct reports whether the status is a direct message: the public
// collection appears in neither recipient list.
func (s *Status) Direct() bool {
	return !containsURI(s.RecipientTo, PublicCollection) &&
		!containsURI(s.RecipientCc, PublicCollection)
}

func containsURI(uris []string, uri string) bool {
	for _, u := range uris {
		if u == uri {
			return true
		}
	}
	return false
}

const (
	AttachmentImage = "image"
	AttachmentAudio = "audio"
)

// Attachment belongs to exactly one status and is created atomically
// with it.
type Attachment struct {
	Id        uuid.UUID
	StatusId  uuid.UUID
	Type      string
	MediaType string
	URL       string
	Name      string
	Width     int
	Height    int
	CreatedAt time.Time
}

const TagMention = "Mention"

// Tag is a protocol tag attached to a status; only Mention tags are
// interpreted by the timeline engine.
type Tag struct {
	Id        uuid.UUID
	StatusId  uuid.UUID
	Type      string
	TargetURI string
	Name      string
}

// TimelineEntry is a status annotated with the requesting viewer's
// liked bit, computed from the Like table and never denormalized onto
// the status row.
type TimelineEntry struct {
	Status
	Liked bool
}
