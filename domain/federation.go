package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	FollowPending  = "pending"
	FollowAccepted = "accepted"
)

// Follow is a directed edge between two actors, unique per ordered
// pair. An accepted edge is mirrored by +1 on the follower's
// following-counter and +1 on the target's follower-counter.
type Follow struct {
	Id            uuid.UUID
	ActorId       uuid.UUID
	TargetActorId uuid.UUID
	URI           string
	Status        string
	AcceptedAt    *time.Time
	CreatedAt     time.Time
}

func (f *Follow) Accepted() bool {
	return f.Status == FollowAccepted
}

// Like is unique per (actor, status) pair. Its existence is the
// per-viewer "liked" fact; the counter on the status is an aggregate.
type Like struct {
	Id        uuid.UUID
	ActorId   uuid.UUID
	StatusId  uuid.UUID
	URI       string
	CreatedAt time.Time
}

// Activity is a logged ActivityPub activity, kept for inbox
// deduplication and debugging.
type Activity struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string
	ActorURI     string
	ObjectURI    string
	RawJSON      string
	Processed    bool
	Local        bool
	CreatedAt    time.Time
}

// DeliveryItem is one pending outbound delivery of an activity to a
// remote inbox.
type DeliveryItem struct {
	Id           uuid.UUID
	InboxURI     string
	ActivityJSON string
	Attempts     int
	NextRetryAt  time.Time
	CreatedAt    time.Time
}
