// Package identity resolves caller tokens into verified identities.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidToken is returned when a token does not resolve to any identity.
// Any other resolver error is a resolution failure.
var ErrInvalidToken = errors.New("identity: token does not resolve to an identity")

// Identity is a verified caller.
type Identity struct {
	SubjectID            string
	DisplayName          string
	Email                string
	PhotoURL             string
	IsOrganizationMember bool
}

// Resolver maps a caller-supplied token to an Identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Membership decides organization membership from the email domain.
type Membership struct {
	Domain string
}

// IsMember reports whether email belongs to the organization domain.
func (m Membership) IsMember(email string) bool {
	if m.Domain == "" {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return false
	}
	return strings.EqualFold(email[at+1:], m.Domain)
}

// StudentNumber returns the local part of an organization email, or the
// email unchanged when it is outside the domain.
func (m Membership) StudentNumber(email string) string {
	if !m.IsMember(email) {
		return email
	}
	return email[:strings.LastIndex(email, "@")]
}

func (m Membership) identity(subject, name, email, photo string) Identity {
	return Identity{
		SubjectID:            subject,
		DisplayName:          name,
		Email:                email,
		PhotoURL:             photo,
		IsOrganizationMember: m.IsMember(email),
	}
}
