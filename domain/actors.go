package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PublicCollection is the ActivityPub public addressing collection.
// Visibility classification is done by exact string membership in a
// status's recipient lists, so this must stay the single definition
// across the whole codebase.
const PublicCollection = "https://www.w3.org/ns/activitystreams#Public"

// Actor represents a federated identity, local or remote. A local actor
// carries its private key; remote actors never do.
type Actor struct {
	Id                uuid.UUID
	URI               string
	Username          string
	Domain            string
	DisplayName       string
	Summary           string
	InboxURI          string
	OutboxURI         string
	FollowersURI      string
	FollowingURI      string
	SharedInboxURI    string
	PublicKeyPem      string
	PrivateKeyPem     string
	FollowerCount     int64
	FollowingCount    int64
	StatusCount       int64
	AvatarURL         string
	HeaderURL         string
	ManuallyApproves  bool
	RefreshedAt       time.Time
	CreatedAt         time.Time
}

// Local reports whether this server is authoritative for the actor.
// Remote-fetch logic must never overwrite a local actor.
func (a *Actor) Local() bool {
	return a.PrivateKeyPem != ""
}

func (a *Actor) Handle() string {
	return fmt.Sprintf("%s@%s", a.Username, a.Domain)
}
