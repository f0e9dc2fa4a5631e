package social

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/domain"
	"github.com/mklatt/dorfplatz/gates"
	"github.com/mklatt/dorfplatz/httpsig"
	"github.com/mklatt/dorfplatz/util"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{1,30}$`)

// CreateLocalActorInput describes a new local actor. The id is supplied
// by the embedding application, which keys eligibility records by it.
type CreateLocalActorInput struct {
	Id          uuid.UUID
	Username    string
	DisplayName string
	Summary     string
}

// CreateLocalActor provisions a local actor: eligibility gate, keypair,
// and the protocol URIs derived from the configured domain.
func CreateLocalActor(database *db.DB, prov gates.Provider, conf *util.AppConfig, input CreateLocalActorInput) (*domain.Actor, error) {
	if !usernamePattern.MatchString(input.Username) {
		return nil, fmt.Errorf("invalid username %q", input.Username)
	}
	if decision := gates.CanCreateActor(prov.EligibilityFor(input.Id)); !decision.Allowed {
		return nil, &GateRejection{Capability: "create_actor", Reason: decision.Reason}
	}

	keys, err := httpsig.GenerateKeypair()
	if err != nil {
		return nil, err
	}

	actorURI := conf.ActorURI(input.Username)
	actor := &domain.Actor{
		Id:             input.Id,
		URI:            actorURI,
		Username:       input.Username,
		Domain:         conf.Conf.Domain,
		DisplayName:    input.DisplayName,
		Summary:        input.Summary,
		InboxURI:       actorURI + "/inbox",
		OutboxURI:      actorURI + "/outbox",
		FollowersURI:   actorURI + "/followers",
		FollowingURI:   actorURI + "/following",
		SharedInboxURI: conf.SharedInboxURI(),
		PublicKeyPem:   keys.Public,
		PrivateKeyPem:  keys.Private,
		CreatedAt:      time.Now().UTC(),
	}

	if err := database.CreateActor(actor); err != nil {
		return nil, fmt.Errorf("failed to create actor %s: %w", input.Username, err)
	}
	return actor, nil
}

// UpdateProfile updates the editable profile fields of a local actor.
// The summary is markdown and is rendered before storage.
func UpdateProfile(database *db.DB, actorId uuid.UUID, displayName, summary, avatarURL, headerURL string) error {
	err, actor := database.ReadActorById(actorId)
	if err != nil {
		return fmt.Errorf("actor not found: %w", err)
	}
	if !actor.Local() {
		return fmt.Errorf("actor %s is not local", actor.Handle())
	}

	rendered, err := util.RenderContent(summary)
	if err != nil {
		return err
	}
	return database.UpdateActorProfile(actorId, displayName, rendered, avatarURL, headerURL)
}
