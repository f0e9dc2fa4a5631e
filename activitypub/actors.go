package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/domain"
	"github.com/mklatt/dorfplatz/httpsig"
	"github.com/mklatt/dorfplatz/util"
)

// actorStaleness is how long a cached remote actor is trusted before
// the resolver refetches it.
const actorStaleness = 72 * time.Hour

var fetchClient = &http.Client{Timeout: 10 * time.Second}

// ActorDocument is the JSON shape of a served or fetched actor.
type ActorDocument struct {
	Context           interface{} `json:"@context,omitempty"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	PreferredUsername string      `json:"preferredUsername"`
	Name              string      `json:"name,omitempty"`
	Summary           string      `json:"summary,omitempty"`
	Inbox             string      `json:"inbox"`
	Outbox            string      `json:"outbox,omitempty"`
	Followers         string      `json:"followers,omitempty"`
	Following         string      `json:"following,omitempty"`
	ManuallyApproves  bool        `json:"manuallyApprovesFollowers"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox,omitempty"`
	} `json:"endpoints,omitempty"`
	Icon struct {
		Type      string `json:"type,omitempty"`
		MediaType string `json:"mediaType,omitempty"`
		URL       string `json:"url,omitempty"`
	} `json:"icon,omitempty"`
	Image struct {
		Type string `json:"type,omitempty"`
		URL  string `json:"url,omitempty"`
	} `json:"image,omitempty"`
	PublicKey httpsig.PublicKeyDescriptor `json:"publicKey"`
}

// FetchRemoteActorDocument fetches and parses an actor document.
// Every failure path returns nil; callers decide whether a stale cache
// entry can stand in.
func FetchRemoteActorDocument(actorURI string) *ActorDocument {
	req, err := http.NewRequest("GET", actorURI, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", httpsig.AcceptActivityJSON)
	req.Header.Set("User-Agent", util.UserAgent())

	resp, err := fetchClient.Do(req)
	if err != nil {
		log.Printf("Resolver: Fetch of %s failed: %v", actorURI, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Resolver: Fetch of %s returned status %d", actorURI, resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	var doc ActorDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		log.Printf("Resolver: Failed to parse actor document from %s: %v", actorURI, err)
		return nil
	}
	if doc.ID == "" || doc.Inbox == "" || doc.PublicKey.PublicKeyPem == "" {
		log.Printf("Resolver: Actor document from %s missing required fields", actorURI)
		return nil
	}
	return &doc
}

func actorFromDocument(doc *ActorDocument) (*domain.Actor, error) {
	domainName, err := extractDomain(doc.ID)
	if err != nil {
		return nil, err
	}
	username := doc.PreferredUsername
	if username == "" {
		username = extractUsername(doc.ID)
	}
	return &domain.Actor{
		Id:               uuid.New(),
		URI:              doc.ID,
		Username:         username,
		Domain:           domainName,
		DisplayName:      doc.Name,
		Summary:          doc.Summary,
		InboxURI:         doc.Inbox,
		OutboxURI:        doc.Outbox,
		FollowersURI:     doc.Followers,
		FollowingURI:     doc.Following,
		SharedInboxURI:   doc.Endpoints.SharedInbox,
		PublicKeyPem:     doc.PublicKey.PublicKeyPem,
		AvatarURL:        doc.Icon.URL,
		HeaderURL:        doc.Image.URL,
		ManuallyApproves: doc.ManuallyApproves,
		RefreshedAt:      time.Now().UTC(),
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// EnsureRemoteActor returns the cached actor for a URI, refetching when
// the cache entry is older than the staleness window. A failed refetch
// falls back to the stale entry. Local actors are returned as-is and
// never overwritten by fetched data.
func EnsureRemoteActor(database *db.DB, actorURI string) (*domain.Actor, error) {
	err, cached := database.ReadActorByURI(actorURI)
	if err == nil && cached != nil {
		if cached.Local() {
			return cached, nil
		}
		if time.Since(cached.RefreshedAt) < actorStaleness {
			return cached, nil
		}
	} else {
		cached = nil
	}

	doc := FetchRemoteActorDocument(actorURI)
	if doc == nil {
		if cached != nil {
			log.Printf("Resolver: Serving stale cache entry for %s", actorURI)
			return cached, nil
		}
		return nil, fmt.Errorf("failed to resolve actor %s", actorURI)
	}

	fresh, err := actorFromDocument(doc)
	if err != nil {
		return nil, err
	}

	if cached != nil {
		if err := database.RefreshRemoteActor(fresh); err != nil {
			return nil, fmt.Errorf("failed to refresh actor %s: %w", actorURI, err)
		}
		err, updated := database.ReadActorByURI(actorURI)
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	if err := database.CreateActor(fresh); err != nil {
		// Lost a race against a concurrent resolve; the row is there now.
		if err2, row := database.ReadActorByURI(actorURI); err2 == nil {
			return row, nil
		}
		return nil, fmt.Errorf("failed to store actor %s: %w", actorURI, err)
	}
	return fresh, nil
}

// ResolveSignaturePublicKey resolves a signature keyId to the actor that
// owns it. The keyId is the actor URI plus a fragment.
func ResolveSignaturePublicKey(database *db.DB, keyId string) (*domain.Actor, error) {
	actorURI := keyId
	if idx := strings.Index(keyId, "#"); idx > 0 {
		actorURI = keyId[:idx]
	}

	actor, err := EnsureRemoteActor(database, actorURI)
	if err != nil {
		return nil, err
	}
	if actor.PublicKeyPem == "" {
		return nil, fmt.Errorf("actor %s has no public key", actorURI)
	}
	return actor, nil
}

// extractDomain extracts the host from an actor URI
// Example: "https://mastodon.social/users/alice" -> "mastodon.social"
func extractDomain(actorURI string) (string, error) {
	parsed, err := url.Parse(actorURI)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid actor URI: %s", actorURI)
	}
	return parsed.Host, nil
}

// extractUsername extracts a username from common URI formats
// Examples:
// - "https://example.com/users/alice" -> "alice"
// - "https://example.com/@alice" -> "alice"
func extractUsername(uri string) string {
	parts := strings.Split(uri, "/")
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimPrefix(parts[len(parts)-1], "@")
}
