// Package identity defines the Actor value type and the closed role
// enumeration that governs which entry points an actor may call, plus a
// JWT-backed session token manager that issues and verifies caller
// session tokens. Authenticating *who is calling* (this package) is
// distinct from authorizing *this one action* (pkg/confirm). Neither
// pkg/confirm nor the orchestrator checks a session token: they take an
// actor id or an Actor value directly.
package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sentryline/guardcore/pkg/guarderr"
	"github.com/sentryline/guardcore/pkg/ids"
)

// ActorType distinguishes human operators from automated callers. Per
// spec §3, SYSTEM actors may never authorize externally-visible effects.
type ActorType string

const (
	ActorHuman    ActorType = "HUMAN"
	ActorSystem   ActorType = "SYSTEM"
	ActorExternal ActorType = "EXTERNAL"
)

// Role is a closed enumeration of permitted roles.
type Role string

const (
	RoleOperator      Role = "OPERATOR"
	RoleAuditor       Role = "AUDITOR"
	RoleAdministrator Role = "ADMINISTRATOR"
	RoleReviewer      Role = "REVIEWER"
)

var validRoles = map[Role]bool{
	RoleOperator:      true,
	RoleAuditor:       true,
	RoleAdministrator: true,
	RoleReviewer:      true,
}

// Actor is an immutable record identifying the entity behind a call.
// There are no setters; construct via New, which validates.
type Actor struct {
	actorID     string
	displayName string
	actorType   ActorType
	role        Role
}

func (a Actor) ID() string          { return a.actorID }
func (a Actor) DisplayName() string { return a.displayName }
func (a Actor) Type() ActorType     { return a.actorType }
func (a Actor) Role() Role          { return a.role }

// CanAuthorizeEffects reports whether this actor is permitted to
// authorize an externally-visible effect. SYSTEM actors never can.
func (a Actor) CanAuthorizeEffects() bool {
	return a.actorType != ActorSystem
}

// New constructs an Actor, validating actorID as a UUIDv4 and actorType/
// role against the closed enumerations. Invalid instances cannot exist.
func New(actorID, displayName string, actorType ActorType, role Role) (Actor, error) {
	if err := ids.ValidateUUIDv4(actorID); err != nil {
		return Actor{}, err
	}
	switch actorType {
	case ActorHuman, ActorSystem, ActorExternal:
	default:
		return Actor{}, guarderr.New(guarderr.KindIdentifierInvalid, "unknown actor_type")
	}
	if !validRoles[role] {
		return Actor{}, guarderr.New(guarderr.KindIdentifierInvalid, "unknown role")
	}
	return Actor{actorID: actorID, displayName: displayName, actorType: actorType, role: role}, nil
}

// SessionClaims extends the registered JWT claim set with the Actor
// fields needed to reconstruct an Actor on the verifying side without a
// second lookup.
type SessionClaims struct {
	jwt.RegisteredClaims
	ActorType ActorType `json:"actor_type"`
	Role      Role      `json:"role"`
	Display   string    `json:"display,omitempty"`
}

// SessionManager signs and verifies bearer session tokens for Actors.
type SessionManager struct {
	signingKey []byte
	issuer     string
}

// NewSessionManager constructs a manager using HMAC-SHA256 signing. A
// production deployment would source signingKey from a KMS; this
// governance core takes it as a configured secret (pkg/config).
func NewSessionManager(signingKey []byte, issuer string) *SessionManager {
	return &SessionManager{signingKey: signingKey, issuer: issuer}
}

// Issue mints a signed session token for actor, valid for duration.
func (m *SessionManager) Issue(actor Actor, duration time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
		ActorType: actor.Type(),
		Role:      actor.Role(),
		Display:   actor.DisplayName(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// Verify parses and validates a session token, returning the
// reconstructed Actor.
func (m *SessionManager) Verify(tokenString string) (Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method)
		}
		return m.signingKey, nil
	})
	if err != nil {
		return Actor{}, guarderr.Wrap(guarderr.KindHumanConfirmationRequired, "session token invalid", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return Actor{}, guarderr.New(guarderr.KindHumanConfirmationRequired, "session token invalid")
	}
	return New(claims.Subject, claims.Display, claims.ActorType, claims.Role)
}
