package guard

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicyAccess(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		path string
		want Access
	}{
		{"/", AccessPublic},
		{"/usage-benefits", AccessPublic},
		{"/product/42", AccessPublic},
		{"/login", AccessPublic},
		{"/signup", AccessPublic},
		{"/dashboard", AccessProtected},
		{"/dashboard/", AccessProtected},
		{"/dashboard/orders", AccessProtected},
		{"/dashboards", AccessPublic},
		{"/admin", AccessAdmin},
		{"/admin/user/7", AccessAdmin},
		{"/admin/../dashboard", AccessProtected},
		{"dashboard", AccessProtected},
	}

	for _, tc := range tests {
		if got := p.AccessFor(tc.path); got != tc.want {
			t.Errorf("AccessFor(%q) = %s, want %s", tc.path, got, tc.want)
		}
	}
}

func TestLongestPrefixWins(t *testing.T) {
	p, err := ParsePolicy([]byte(`
login_path: /login
user_home: /dashboard
admin_home: /admin
rules:
  - prefix: /admin
    access: admin
  - prefix: /admin/help
    access: public
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := p.AccessFor("/admin/help/faq"); got != AccessPublic {
		t.Fatalf("expected the more specific rule to win, got %s", got)
	}
	if got := p.AccessFor("/admin/users"); got != AccessAdmin {
		t.Fatalf("expected admin, got %s", got)
	}
	if p.Default != AccessPublic {
		t.Fatalf("default should fall back to public, got %s", p.Default)
	}
}

func TestParsePolicyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown access", "login_path: /login\nuser_home: /d\nadmin_home: /a\nrules:\n  - prefix: /x\n    access: secret\n"},
		{"relative prefix", "login_path: /login\nuser_home: /d\nadmin_home: /a\nrules:\n  - prefix: x\n    access: public\n"},
		{"missing home", "login_path: /login\nadmin_home: /a\n"},
		{"protected login", "login_path: /login\nuser_home: /d\nadmin_home: /a\ndefault: protected\n"},
		{"bad yaml", "rules: [\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePolicy([]byte(tc.yaml)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	p, err := LoadPolicy("")
	if err != nil || p.UserHome != "/dashboard" {
		t.Fatalf("empty filename should load the built-in policy, got %+v, %v", p, err)
	}

	file := filepath.Join(t.TempDir(), "routes.yaml")
	content := "login_path: /signin\nuser_home: /home\nadmin_home: /staff\ndefault: protected\nrules:\n  - prefix: /signin\n    access: public\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err = LoadPolicy(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.LoginPath != "/signin" || p.AccessFor("/anything") != AccessProtected {
		t.Fatalf("unexpected policy %+v", p)
	}

	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
