package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/domain"
	"github.com/mklatt/dorfplatz/gates"
	"github.com/mklatt/dorfplatz/httpsig"
	"github.com/mklatt/dorfplatz/util"
)

// Activity is the generic envelope of an incoming activity.
type Activity struct {
	Context interface{} `json:"@context"`
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Actor   string      `json:"actor"`
	Object  interface{} `json:"object"`
}

// FollowActivity is an incoming Follow; the object is the URI of the
// actor being followed.
type FollowActivity struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Actor  string `json:"actor"`
	Object string `json:"object"`
}

// HandleInbox processes an incoming activity. The checks run in a fixed
// order: malformed envelope 400, then authentication 401, then the
// type dispatch. Anything that authenticates gets a 202 unless a
// handler fails outright.
func HandleInbox(database *db.DB, prov gates.Provider, conf *util.AppConfig, w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Inbox: Failed to read body: %v", err)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		log.Printf("Inbox: Failed to parse activity: %v", err)
		http.Error(w, "Invalid activity", http.StatusBadRequest)
		return
	}
	if activity.Type == "" || activity.Actor == "" {
		log.Printf("Inbox: Activity missing type or actor")
		http.Error(w, "Invalid activity", http.StatusBadRequest)
		return
	}

	log.Printf("Inbox: Received %s from %s", activity.Type, activity.Actor)

	params := httpsig.ParseSignatureHeader(r.Header.Get("Signature"))
	keyId := params["keyId"]
	if keyId == "" {
		log.Printf("Inbox: Missing or malformed signature header")
		http.Error(w, "Missing signature", http.StatusUnauthorized)
		return
	}

	sender, err := ResolveSignaturePublicKey(database, keyId)
	if err != nil {
		log.Printf("Inbox: Failed to resolve signing key %s: %v", keyId, err)
		http.Error(w, "Failed to verify actor", http.StatusUnauthorized)
		return
	}

	if !httpsig.VerifyRequest(r, sender.PublicKeyPem) {
		log.Printf("Inbox: Signature verification failed for %s", sender.Handle())
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	// Replays of an already-seen activity URI are acknowledged and
	// dropped.
	if activity.ID != "" {
		record := &domain.Activity{
			Id:           uuid.New(),
			ActivityURI:  activity.ID,
			ActivityType: activity.Type,
			ActorURI:     activity.Actor,
			ObjectURI:    objectURI(activity.Object),
			RawJSON:      string(body),
			CreatedAt:    time.Now().UTC(),
		}
		inserted, err := database.LogActivity(record)
		if err != nil {
			log.Printf("Inbox: Failed to log activity: %v", err)
		} else if !inserted {
			log.Printf("Inbox: Activity %s already processed, skipping", activity.ID)
			w.WriteHeader(http.StatusAccepted)
			return
		}
	}

	switch activity.Type {
	case "Follow":
		if err := handleFollowActivity(database, prov, conf, body, sender); err != nil {
			log.Printf("Inbox: Failed to handle Follow: %v", err)
			http.Error(w, "Failed to process Follow", http.StatusInternalServerError)
			return
		}
	case "Undo":
		if err := handleUndoActivity(database, body, sender); err != nil {
			log.Printf("Inbox: Failed to handle Undo: %v", err)
			http.Error(w, "Failed to process Undo", http.StatusInternalServerError)
			return
		}
	case "Accept":
		if err := handleAcceptActivity(database, body, sender); err != nil {
			// A broken Accept leaves the follow pending; nothing to
			// report to the remote side.
			log.Printf("Inbox: Failed to handle Accept: %v", err)
		}
	case "Create":
		if err := handleCreateActivity(database, body, sender); err != nil {
			log.Printf("Inbox: Failed to handle Create: %v", err)
			http.Error(w, "Failed to process Create", http.StatusInternalServerError)
			return
		}
	case "Like":
		if err := handleLikeActivity(database, body, sender); err != nil {
			log.Printf("Inbox: Failed to handle Like: %v", err)
		}
	case "Delete":
		if err := handleDeleteActivity(database, body, sender); err != nil {
			log.Printf("Inbox: Failed to handle Delete: %v", err)
		}
	default:
		log.Printf("Inbox: Unsupported activity type: %s", activity.Type)
	}

	if activity.ID != "" {
		database.MarkActivityProcessed(activity.ID)
	}

	w.WriteHeader(http.StatusAccepted)
}

func objectURI(object interface{}) string {
	switch obj := object.(type) {
	case string:
		return obj
	case map[string]interface{}:
		if id, ok := obj["id"].(string); ok {
			return id
		}
	}
	return ""
}

// handleFollowActivity stores an accepted follow edge for a local
// target and fires the Accept asynchronously. The remote side gets its
// 202 whether or not the Accept delivery works out.
func handleFollowActivity(database *db.DB, prov gates.Provider, conf *util.AppConfig, body []byte, sender *domain.Actor) error {
	var follow FollowActivity
	if err := json.Unmarshal(body, &follow); err != nil {
		return fmt.Errorf("failed to parse Follow activity: %w", err)
	}

	err, target := database.ReadActorByURI(follow.Object)
	if err != nil {
		return fmt.Errorf("follow target %s not found", follow.Object)
	}
	if !target.Local() {
		return fmt.Errorf("follow target %s is not a local actor", follow.Object)
	}

	if decision := gates.CanBeFollowed(prov.EligibilityFor(target.Id)); !decision.Allowed {
		log.Printf("Inbox: Ignoring follow of %s: %s", target.Handle(), decision.Reason)
		return nil
	}

	err, existing := database.ReadFollowByPair(sender.Id, target.Id)
	if err == nil && existing != nil {
		// The edge already stands. A re-sent Follow usually carries a
		// fresh activity URI; store it so a later Undo referencing the
		// new URI still resolves.
		if follow.ID != "" && follow.ID != existing.URI {
			if err := database.UpdateFollowURI(existing.Id, follow.ID); err != nil {
				return fmt.Errorf("failed to update follow URI: %w", err)
			}
		}
		log.Printf("Inbox: Follow from %s already recorded", sender.Handle())
		return nil
	}

	now := time.Now().UTC()
	record := &domain.Follow{
		Id:            uuid.New(),
		ActorId:       sender.Id,
		TargetActorId: target.Id,
		URI:           follow.ID,
		Status:        domain.FollowAccepted,
		AcceptedAt:    &now,
		CreatedAt:     now,
	}
	if err := database.CreateFollow(record); err != nil {
		return fmt.Errorf("failed to create follow: %w", err)
	}
	if err := database.AdjustFollowCounters(sender.Id, target.Id, 1); err != nil {
		return fmt.Errorf("failed to adjust counters: %w", err)
	}

	go func() {
		if err := SendAccept(target, sender, follow.ID, conf); err != nil {
			log.Printf("Inbox: Failed to send Accept to %s: %v", sender.Handle(), err)
		}
	}()

	log.Printf("Inbox: Accepted follow from %s", sender.Handle())
	return nil
}

// handleUndoActivity retracts a Follow or Like. Unknown objects are
// ignored.
func handleUndoActivity(database *db.DB, body []byte, sender *domain.Actor) error {
	var undo struct {
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(body, &undo); err != nil {
		return fmt.Errorf("failed to parse Undo activity: %w", err)
	}

	var obj struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Object string `json:"object"`
	}
	if err := json.Unmarshal(undo.Object, &obj); err != nil {
		return fmt.Errorf("failed to parse Undo object: %w", err)
	}

	switch obj.Type {
	case "Follow":
		err, follow := database.ReadFollowByURI(obj.ID)
		if err != nil {
			log.Printf("Inbox: Undo for unknown follow %s, ignoring", obj.ID)
			return nil
		}
		// Only the actor who followed can retract the edge.
		if follow.ActorId != sender.Id {
			return fmt.Errorf("undo sender %s does not own follow %s", sender.Handle(), obj.ID)
		}
		if follow.Accepted() {
			if err := database.AdjustFollowCounters(follow.ActorId, follow.TargetActorId, -1); err != nil {
				return fmt.Errorf("failed to adjust counters: %w", err)
			}
		}
		if err := database.DeleteFollow(follow.Id); err != nil {
			return fmt.Errorf("failed to delete follow: %w", err)
		}
		log.Printf("Inbox: Removed follow from %s", sender.Handle())

	case "Like":
		err, status := database.ReadStatusByURI(obj.Object)
		if err != nil {
			return nil
		}
		deleted, err := database.DeleteLike(sender.Id, status.Id)
		if err != nil {
			return fmt.Errorf("failed to delete like: %w", err)
		}
		if deleted {
			database.AdjustLikeCount(status.Id, -1)
		}

	default:
		log.Printf("Inbox: Unsupported Undo object type: %s", obj.Type)
	}
	return nil
}

// handleAcceptActivity confirms a follow this server sent earlier. The
// counters move exactly once, when the edge flips from pending.
func handleAcceptActivity(database *db.DB, body []byte, sender *domain.Actor) error {
	var accept struct {
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(body, &accept); err != nil {
		return fmt.Errorf("failed to parse Accept activity: %w", err)
	}

	var followObj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(accept.Object, &followObj); err != nil {
		return fmt.Errorf("failed to parse Accept object: %w", err)
	}

	err, follow := database.ReadFollowByURI(followObj.ID)
	if err != nil {
		return fmt.Errorf("accept for unknown follow %s", followObj.ID)
	}
	// Only the followed actor may accept.
	if follow.TargetActorId != sender.Id {
		return fmt.Errorf("accept sender %s does not own follow %s", sender.Handle(), followObj.ID)
	}
	if follow.Accepted() {
		return nil
	}

	if err := database.AcceptFollow(follow.Id, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to accept follow: %w", err)
	}
	if err := database.AdjustFollowCounters(follow.ActorId, follow.TargetActorId, 1); err != nil {
		return fmt.Errorf("failed to adjust counters: %w", err)
	}

	log.Printf("Inbox: Follow %s was accepted by %s", followObj.ID, sender.Handle())
	return nil
}

// createObject is the object payload of an incoming Create.
type createObject struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Content      string   `json:"content"`
	Summary      string   `json:"summary"`
	Published    string   `json:"published"`
	AttributedTo string   `json:"attributedTo"`
	InReplyTo    string   `json:"inReplyTo"`
	To           []string `json:"to"`
	Cc           []string `json:"cc"`
	Tag          []struct {
		Type string `json:"type"`
		Href string `json:"href"`
		Name string `json:"name"`
	} `json:"tag"`
	Attachment []struct {
		Type      string `json:"type"`
		MediaType string `json:"mediaType"`
		URL       string `json:"url"`
		Name      string `json:"name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"attachment"`
}

// handleCreateActivity ingests a remote status. Posts from actors
// nobody here follows are dropped unless they address a local actor
// directly.
func handleCreateActivity(database *db.DB, body []byte, sender *domain.Actor) error {
	var create struct {
		ID     string       `json:"id"`
		Actor  string       `json:"actor"`
		Object createObject `json:"object"`
	}
	if err := json.Unmarshal(body, &create); err != nil {
		return fmt.Errorf("failed to parse Create activity: %w", err)
	}
	if create.Object.ID == "" || create.Object.Content == "" {
		return fmt.Errorf("create object missing id or content")
	}

	if err, _ := database.ReadStatusByURI(create.Object.ID); err == nil {
		log.Printf("Inbox: Status %s already exists, skipping", create.Object.ID)
		return nil
	}

	if !senderIsRelevant(database, sender, create.Object.To, create.Object.Cc) {
		log.Printf("Inbox: Dropping Create from %s: no local follower or recipient", sender.Handle())
		return nil
	}

	now := time.Now().UTC()
	publishedAt := now
	if t, err := time.Parse(time.RFC3339, create.Object.Published); err == nil {
		publishedAt = t.UTC()
	}

	objectType := create.Object.Type
	if objectType == "" {
		objectType = "Note"
	}

	status := &domain.Status{
		Id:             uuid.New(),
		ActorId:        sender.Id,
		URI:            create.Object.ID,
		Content:        util.SanitizeHTML(create.Object.Content),
		ContentWarning: create.Object.Summary,
		ObjectType:     objectType,
		PublishedAt:    &publishedAt,
		InReplyToURI:   create.Object.InReplyTo,
		RecipientTo:    create.Object.To,
		RecipientCc:    create.Object.Cc,
		CreatedAt:      publishedAt,
	}

	if create.Object.InReplyTo != "" {
		if err, parent := database.ReadStatusByURI(create.Object.InReplyTo); err == nil {
			id := parent.Id
			status.InReplyToId = &id
		}
	}

	var attachments []domain.Attachment
	for _, att := range create.Object.Attachment {
		attType := domain.AttachmentImage
		if strings.HasPrefix(att.MediaType, "audio") {
			attType = domain.AttachmentAudio
		}
		attachments = append(attachments, domain.Attachment{
			Id:        uuid.New(),
			StatusId:  status.Id,
			Type:      attType,
			MediaType: att.MediaType,
			URL:       att.URL,
			Name:      att.Name,
			Width:     att.Width,
			Height:    att.Height,
			CreatedAt: now,
		})
	}

	var tags []domain.Tag
	for _, tag := range create.Object.Tag {
		if tag.Type != domain.TagMention {
			continue
		}
		tags = append(tags, domain.Tag{
			Id:        uuid.New(),
			StatusId:  status.Id,
			Type:      tag.Type,
			TargetURI: tag.Href,
			Name:      tag.Name,
		})
	}

	if err := database.CreateStatus(status, attachments, tags); err != nil {
		return fmt.Errorf("failed to store status: %w", err)
	}
	database.AdjustStatusCount(sender.Id, 1)
	if status.InReplyToId != nil {
		database.AdjustReplyCount(*status.InReplyToId, 1)
	}

	log.Printf("Inbox: Stored status %s from %s", create.Object.ID, sender.Handle())
	return nil
}

// senderIsRelevant reports whether anyone here follows the sender, or
// the activity addresses a local actor directly.
func senderIsRelevant(database *db.DB, sender *domain.Actor, to, cc []string) bool {
	if sender.FollowerCount > 0 {
		return true
	}
	for _, uri := range append(append([]string{}, to...), cc...) {
		if uri == domain.PublicCollection {
			continue
		}
		if err, actor := database.ReadActorByURI(uri); err == nil && actor.Local() {
			return true
		}
	}
	return false
}

// handleLikeActivity records a like on a local status.
func handleLikeActivity(database *db.DB, body []byte, sender *domain.Actor) error {
	var like struct {
		ID     string `json:"id"`
		Object string `json:"object"`
	}
	if err := json.Unmarshal(body, &like); err != nil {
		return fmt.Errorf("failed to parse Like activity: %w", err)
	}

	err, status := database.ReadStatusByURI(like.Object)
	if err != nil {
		log.Printf("Inbox: Like for unknown status %s, ignoring", like.Object)
		return nil
	}

	record := &domain.Like{
		Id:        uuid.New(),
		ActorId:   sender.Id,
		StatusId:  status.Id,
		URI:       like.ID,
		CreatedAt: time.Now().UTC(),
	}
	inserted, err := database.CreateLike(record)
	if err != nil {
		return fmt.Errorf("failed to store like: %w", err)
	}
	if inserted {
		database.AdjustLikeCount(status.Id, 1)
	}
	return nil
}

// handleDeleteActivity removes a status the sender authored. Actor
// deletions and foreign objects are ignored.
func handleDeleteActivity(database *db.DB, body []byte, sender *domain.Actor) error {
	var del struct {
		Actor  string      `json:"actor"`
		Object interface{} `json:"object"`
	}
	if err := json.Unmarshal(body, &del); err != nil {
		return fmt.Errorf("failed to parse Delete activity: %w", err)
	}

	uri := objectURI(del.Object)
	if uri == "" || uri == del.Actor {
		return nil
	}

	err, status := database.ReadStatusByURI(uri)
	if err != nil {
		return nil
	}
	if status.ActorId != sender.Id {
		return fmt.Errorf("delete sender %s does not own status %s", sender.Handle(), uri)
	}

	if err := database.DeleteStatus(status.Id); err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}
	database.AdjustStatusCount(sender.Id, -1)
	if status.InReplyToId != nil {
		database.AdjustReplyCount(*status.InReplyToId, -1)
	}
	log.Printf("Inbox: Deleted status %s", uri)
	return nil
}
