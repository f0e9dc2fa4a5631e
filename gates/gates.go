// Package gates holds the eligibility predicates for social features.
// The surrounding directory application owns the eligibility data; the
// federation core only ever reads it through these checks.
package gates

import "github.com/google/uuid"

// Reason codes surfaced to callers on rejection.
const (
	ReasonNoRecord       = "no_eligibility_record"
	ReasonSocialDisabled = "social_disabled"
)

// Record is the read-only eligibility input handed to the gates. The
// core never mutates it.
type Record struct {
	SocialEnabled bool
	Reason        string
}

// Decision is the result of a gate check. Rejections are values, never
// panics; Reason is set only when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  string
}

// Provider supplies eligibility records for local actors. Remote actors
// have no record and are never gated.
type Provider interface {
	EligibilityFor(actorId uuid.UUID) *Record
}

// CanCreateActor requires an eligibility record that enables social
// features.
func CanCreateActor(rec *Record) Decision {
	if rec == nil {
		return Decision{Reason: ReasonNoRecord}
	}
	if !rec.SocialEnabled {
		reason := rec.Reason
		if reason == "" {
			reason = ReasonSocialDisabled
		}
		return Decision{Reason: reason}
	}
	return Decision{Allowed: true}
}

// The capability checks below currently share the actor-creation rule.
// They stay distinct so per-capability restrictions (e.g. local-only
// federation) can attach without touching call sites.

func CanPost(rec *Record) Decision {
	return CanCreateActor(rec)
}

func CanFollow(rec *Record) Decision {
	return CanCreateActor(rec)
}

func CanBeFollowed(rec *Record) Decision {
	return CanCreateActor(rec)
}

func CanFederate(rec *Record) Decision {
	return CanCreateActor(rec)
}

// AllowAll is a Provider that enables social features for every actor.
// Used when the embedding application does not restrict eligibility.
type AllowAll struct{}

func (AllowAll) EligibilityFor(uuid.UUID) *Record {
	return &Record{SocialEnabled: true}
}

// Static is a fixed Provider keyed by actor id, mainly for tests.
type Static map[uuid.UUID]*Record

func (s Static) EligibilityFor(actorId uuid.UUID) *Record {
	return s[actorId]
}
