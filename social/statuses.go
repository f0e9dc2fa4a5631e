package social

import (
	"fmt"
	"log"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/activitypub"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/domain"
	"github.com/mklatt/dorfplatz/gates"
	"github.com/mklatt/dorfplatz/util"
)

// mentionPattern matches @user and @user@domain in raw status text.
var mentionPattern = regexp.MustCompile(`@([a-z0-9_]+)(?:@([a-z0-9.\-]+))?`)

// CreateStatusInput is a status as composed by a local actor. Content
// is markdown; DirectRecipients is consulted only for direct
// visibility.
type CreateStatusInput struct {
	ActorId          uuid.UUID
	Content          string
	ContentWarning   string
	Visibility       string
	InReplyToId      *uuid.UUID
	DirectRecipients []string
	Attachments      []domain.Attachment
	ExpiresAt        *time.Time
	Draft            bool
}

// CreateStatus composes and stores a status. The visibility maps to the
// recipient lists:
//
//	public   -> to {public collection}, cc {author's followers}
//	unlisted -> to {author's followers}, cc {public collection}
//	private  -> to {author's followers}
//	direct   -> to {explicit recipient URIs}
//
// Published statuses federate immediately; drafts sit unaddressed until
// PublishDraft.
func CreateStatus(database *db.DB, prov gates.Provider, conf *util.AppConfig, input CreateStatusInput) (*domain.Status, error) {
	err, author := database.ReadActorById(input.ActorId)
	if err != nil {
		return nil, fmt.Errorf("actor not found: %w", err)
	}
	if !author.Local() {
		return nil, fmt.Errorf("author %s is not a local actor", author.Handle())
	}
	if decision := gates.CanPost(prov.EligibilityFor(input.ActorId)); !decision.Allowed {
		return nil, &GateRejection{Capability: "post", Reason: decision.Reason}
	}

	if input.Content == "" {
		return nil, fmt.Errorf("status content is empty")
	}
	if utf8.RuneCountInString(input.Content) > domain.MaxStatusLength {
		return nil, fmt.Errorf("status exceeds %d characters", domain.MaxStatusLength)
	}

	to, cc, err := recipientLists(author, input.Visibility, input.DirectRecipients)
	if err != nil {
		return nil, err
	}

	rendered, err := util.RenderContent(input.Content)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status := &domain.Status{
		Id:             uuid.New(),
		ActorId:        author.Id,
		Content:        rendered,
		ContentWarning: input.ContentWarning,
		ObjectType:     "Note",
		RecipientTo:    to,
		RecipientCc:    cc,
		ExpiresAt:      input.ExpiresAt,
		CreatedAt:      now,
	}
	status.URI = fmt.Sprintf("https://%s/statuses/%s", conf.Conf.Domain, status.Id)
	if !input.Draft {
		status.PublishedAt = &now
	}

	if input.InReplyToId != nil {
		err, parent := database.ReadStatusById(*input.InReplyToId)
		if err != nil {
			return nil, fmt.Errorf("reply parent not found: %w", err)
		}
		id := parent.Id
		status.InReplyToId = &id
		status.InReplyToURI = parent.URI
	}

	tags := mentionTags(database, conf, status.Id, input.Content)

	for i := range input.Attachments {
		input.Attachments[i].Id = uuid.New()
		input.Attachments[i].StatusId = status.Id
		input.Attachments[i].CreatedAt = now
	}

	if err := database.CreateStatus(status, input.Attachments, tags); err != nil {
		return nil, fmt.Errorf("failed to store status: %w", err)
	}

	if status.PublishedAt != nil {
		afterPublish(database, prov, conf, status, author)
	}
	return status, nil
}

// PublishDraft stamps a draft and runs the side effects publishing
// brings: counters, reply counter, federation fan-out. The timestamp
// never moves on re-publish.
func PublishDraft(database *db.DB, prov gates.Provider, conf *util.AppConfig, actorId, statusId uuid.UUID) (*domain.Status, error) {
	err, status := database.ReadStatusById(statusId)
	if err != nil {
		return nil, fmt.Errorf("status not found: %w", err)
	}
	if status.ActorId != actorId {
		return nil, fmt.Errorf("status %s is not owned by actor %s", statusId, actorId)
	}
	if status.PublishedAt != nil {
		return status, nil
	}

	now := time.Now().UTC()
	if err := database.PublishStatus(statusId, now); err != nil {
		return nil, err
	}
	status.PublishedAt = &now

	err, author := database.ReadActorById(actorId)
	if err != nil {
		return nil, err
	}
	afterPublish(database, prov, conf, status, author)
	return status, nil
}

func afterPublish(database *db.DB, prov gates.Provider, conf *util.AppConfig, status *domain.Status, author *domain.Actor) {
	database.AdjustStatusCount(author.Id, 1)
	if status.InReplyToId != nil {
		database.AdjustReplyCount(*status.InReplyToId, 1)
	}

	if !conf.Conf.WithFed {
		return
	}
	if decision := gates.CanFederate(prov.EligibilityFor(author.Id)); !decision.Allowed {
		log.Printf("Statuses: Not federating status %s: %s", status.Id, decision.Reason)
		return
	}
	if err := activitypub.SendCreate(database, status, author, conf); err != nil {
		log.Printf("Statuses: Failed to queue deliveries for %s: %v", status.Id, err)
	}
}

// DeleteStatus removes a status owned by the given local actor.
func DeleteStatus(database *db.DB, actorId, statusId uuid.UUID) error {
	err, status := database.ReadStatusById(statusId)
	if err != nil {
		return fmt.Errorf("status not found: %w", err)
	}
	if status.ActorId != actorId {
		return fmt.Errorf("status %s is not owned by actor %s", statusId, actorId)
	}

	if err := database.DeleteStatus(statusId); err != nil {
		return err
	}
	if status.PublishedAt != nil {
		database.AdjustStatusCount(actorId, -1)
		if status.InReplyToId != nil {
			database.AdjustReplyCount(*status.InReplyToId, -1)
		}
	}
	return nil
}

// LikeStatus records a like by a local actor. Repeats are no-ops.
func LikeStatus(database *db.DB, actorId, statusId uuid.UUID) error {
	err, _ := database.ReadStatusById(statusId)
	if err != nil {
		return fmt.Errorf("status not found: %w", err)
	}
	like := &domain.Like{
		Id:        uuid.New(),
		ActorId:   actorId,
		StatusId:  statusId,
		CreatedAt: time.Now().UTC(),
	}
	inserted, err := database.CreateLike(like)
	if err != nil {
		return err
	}
	if inserted {
		return database.AdjustLikeCount(statusId, 1)
	}
	return nil
}

// UnlikeStatus removes a like. Absent likes are no-ops.
func UnlikeStatus(database *db.DB, actorId, statusId uuid.UUID) error {
	deleted, err := database.DeleteLike(actorId, statusId)
	if err != nil {
		return err
	}
	if deleted {
		return database.AdjustLikeCount(statusId, -1)
	}
	return nil
}

func recipientLists(author *domain.Actor, visibility string, direct []string) (to, cc []string, err error) {
	switch visibility {
	case domain.VisibilityPublic:
		return []string{domain.PublicCollection}, []string{author.FollowersURI}, nil
	case domain.VisibilityUnlisted:
		return []string{author.FollowersURI}, []string{domain.PublicCollection}, nil
	case domain.VisibilityPrivate:
		return []string{author.FollowersURI}, nil, nil
	case domain.VisibilityDirect:
		if len(direct) == 0 {
			return nil, nil, fmt.Errorf("direct status needs at least one recipient")
		}
		for _, uri := range direct {
			if uri == domain.PublicCollection {
				return nil, nil, fmt.Errorf("direct status cannot address the public collection")
			}
		}
		return direct, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown visibility %q", visibility)
	}
}

// mentionTags resolves @user and @user@domain mentions against known
// actors. Unknown handles are left as plain text.
func mentionTags(database *db.DB, conf *util.AppConfig, statusId uuid.UUID, content string) []domain.Tag {
	var tags []domain.Tag
	seen := map[string]bool{}
	for _, match := range mentionPattern.FindAllStringSubmatch(content, -1) {
		username, domainName := match[1], match[2]
		if domainName == "" {
			domainName = conf.Conf.Domain
		}
		err, actor := database.ReadActorByUsername(username, domainName)
		if err != nil || seen[actor.URI] {
			continue
		}
		seen[actor.URI] = true
		tags = append(tags, domain.Tag{
			Id:        uuid.New(),
			StatusId:  statusId,
			Type:      domain.TagMention,
			TargetURI: actor.URI,
			Name:      "@" + actor.Handle(),
		})
	}
	return tags
}
