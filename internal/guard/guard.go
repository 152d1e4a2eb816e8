// Package guard decides what a visitor may see for a given path based on the
// current session state. Evaluate is pure; the Gin middleware in this package
// turns its outcome into HTTP responses.
package guard

import (
	"ionizer_portal/internal/session"
)

// Decision is what the caller should do with a navigation.
type Decision string

const (
	ShowPlaceholder  Decision = "placeholder"
	RedirectLogin    Decision = "redirect_login"
	RedirectRoleHome Decision = "redirect_role_home"
	RenderContent    Decision = "render"
)

// Status classifies the session state the decision was made from.
type Status string

const (
	StatusPending            Status = "pending"
	StatusUnauthenticated    Status = "unauthenticated"
	StatusAuthenticatedUser  Status = "authenticated_user"
	StatusAuthenticatedAdmin Status = "authenticated_admin"
)

// Outcome is the result of evaluating a path. Location is set for redirects.
type Outcome struct {
	Decision Decision `json:"decision"`
	Location string   `json:"location,omitempty"`
	Status   Status   `json:"status"`
	Access   Access   `json:"access"`
}

// Redirect reports whether the outcome sends the visitor elsewhere.
func (o Outcome) Redirect() bool {
	return o.Decision == RedirectLogin || o.Decision == RedirectRoleHome
}

// StatusOf classifies state.
func StatusOf(state session.State) Status {
	switch {
	case state.Loading:
		return StatusPending
	case !state.Authenticated():
		return StatusUnauthenticated
	case state.IsAdmin:
		return StatusAuthenticatedAdmin
	default:
		return StatusAuthenticatedUser
	}
}

// HomeFor returns the landing page for state: the admin home for admins,
// the user home otherwise.
func (p *Policy) HomeFor(state session.State) string {
	if state.Authenticated() && state.IsAdmin {
		return p.AdminHome
	}
	return p.UserHome
}

// Evaluate decides what to do with a navigation to urlPath.
func Evaluate(p *Policy, state session.State, urlPath string) Outcome {
	clean := CleanPath(urlPath)
	access := p.AccessFor(clean)
	status := StatusOf(state)
	out := Outcome{Decision: RenderContent, Status: status, Access: access}

	if access == AccessPublic {
		return out
	}

	switch status {
	case StatusPending:
		out.Decision = ShowPlaceholder
	case StatusUnauthenticated:
		out.Decision = RedirectLogin
		out.Location = p.LoginPath
	case StatusAuthenticatedUser:
		if access == AccessAdmin {
			out.Decision = RedirectRoleHome
			out.Location = p.UserHome
		}
	case StatusAuthenticatedAdmin:
		// Only the exact user home bounces; deeper user pages stay reachable.
		if clean == p.UserHome {
			out.Decision = RedirectRoleHome
			out.Location = p.AdminHome
		}
	}
	return out
}
