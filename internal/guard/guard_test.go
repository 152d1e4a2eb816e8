package guard

import (
	"testing"

	"ionizer_portal/internal/profile"
	"ionizer_portal/internal/session"
)

var pending = session.State{Loading: true}

var anon = session.State{}

var user = session.State{
	Principal: &session.Principal{ID: "user-1", Email: "user@example.com"},
	Profile:   &profile.Profile{ID: "user-1", Name: "Asha"},
}

var admin = session.State{
	Principal: &session.Principal{ID: "admin-1", Email: "admin@example.com"},
	IsAdmin:   true,
	Role:      profile.RoleAdmin,
}

func TestEvaluate(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		state    session.State
		path     string
		decision Decision
		location string
		status   Status
	}{
		{"pending on protected shows placeholder", pending, "/dashboard", ShowPlaceholder, "", StatusPending},
		{"pending on admin shows placeholder", pending, "/admin", ShowPlaceholder, "", StatusPending},
		{"pending on public renders", pending, "/blogs", RenderContent, "", StatusPending},
		{"anonymous on protected goes to login", anon, "/dashboard", RedirectLogin, "/login", StatusUnauthenticated},
		{"anonymous on admin goes to login", anon, "/admin/user/3", RedirectLogin, "/login", StatusUnauthenticated},
		{"anonymous on login renders", anon, "/login", RenderContent, "", StatusUnauthenticated},
		{"user on dashboard renders", user, "/dashboard", RenderContent, "", StatusAuthenticatedUser},
		{"user on admin goes home", user, "/admin", RedirectRoleHome, "/dashboard", StatusAuthenticatedUser},
		{"user on admin subpage goes home", user, "/admin/user/9", RedirectRoleHome, "/dashboard", StatusAuthenticatedUser},
		{"admin on admin renders", admin, "/admin", RenderContent, "", StatusAuthenticatedAdmin},
		{"admin on user home goes to admin home", admin, "/dashboard", RedirectRoleHome, "/admin", StatusAuthenticatedAdmin},
		{"admin on user home with slash goes to admin home", admin, "/dashboard/", RedirectRoleHome, "/admin", StatusAuthenticatedAdmin},
		{"admin on deeper user page renders", admin, "/dashboard/orders", RenderContent, "", StatusAuthenticatedAdmin},
		{"admin on public renders", admin, "/", RenderContent, "", StatusAuthenticatedAdmin},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := Evaluate(p, tc.state, tc.path)
			if out.Decision != tc.decision || out.Location != tc.location || out.Status != tc.status {
				t.Fatalf("got %+v, want decision=%s location=%q status=%s", out, tc.decision, tc.location, tc.status)
			}
		})
	}
}

func TestEvaluateUnknownProfileStillRenders(t *testing.T) {
	// Authenticated with a failed profile lookup and a failed admin check.
	state := session.State{Principal: &session.Principal{ID: "user-2"}}

	out := Evaluate(DefaultPolicy(), state, "/dashboard")
	if out.Decision != RenderContent {
		t.Fatalf("expected render without a profile, got %+v", out)
	}
	out = Evaluate(DefaultPolicy(), state, "/admin")
	if out.Decision != RedirectRoleHome || out.Location != "/dashboard" {
		t.Fatalf("unknown admin status must not open admin routes, got %+v", out)
	}
}

func TestHomeFor(t *testing.T) {
	p := DefaultPolicy()
	if got := p.HomeFor(admin); got != "/admin" {
		t.Fatalf("admin home = %s", got)
	}
	if got := p.HomeFor(user); got != "/dashboard" {
		t.Fatalf("user home = %s", got)
	}
	if got := p.HomeFor(anon); got != "/dashboard" {
		t.Fatalf("anonymous home = %s", got)
	}
}

func TestOutcomeRedirect(t *testing.T) {
	if !(Outcome{Decision: RedirectLogin}).Redirect() || (Outcome{Decision: ShowPlaceholder}).Redirect() {
		t.Fatal("Redirect misclassifies decisions")
	}
}
