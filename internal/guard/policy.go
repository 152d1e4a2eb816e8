package guard

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Access is the level a route requires.
type Access string

const (
	AccessPublic    Access = "public"
	AccessProtected Access = "protected"
	AccessAdmin     Access = "admin"
)

func (a Access) valid() bool {
	switch a {
	case AccessPublic, AccessProtected, AccessAdmin:
		return true
	}
	return false
}

// Rule applies Access to every path under Prefix.
type Rule struct {
	Prefix string `yaml:"prefix"`
	Access Access `yaml:"access"`
}

// Policy describes the protected areas of the portal and where to send
// visitors who may not see them.
type Policy struct {
	LoginPath string `yaml:"login_path"`
	UserHome  string `yaml:"user_home"`
	AdminHome string `yaml:"admin_home"`
	Default   Access `yaml:"default"`
	Rules     []Rule `yaml:"rules"`
}

//go:embed routes.yaml
var defaultRoutes []byte

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultRoutes)
	if err != nil {
		panic("guard: invalid embedded routes.yaml: " + err.Error())
	}
	return p
}

// LoadPolicy reads a policy file, or returns the built-in policy when
// filename is empty.
func LoadPolicy(filename string) (*Policy, error) {
	if strings.TrimSpace(filename) == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read route policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML policy.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse route policy: %w", err)
	}
	if p.Default == "" {
		p.Default = AccessPublic
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) normalize() error {
	for _, target := range []*string{&p.LoginPath, &p.UserHome, &p.AdminHome} {
		if *target == "" || !strings.HasPrefix(*target, "/") {
			return fmt.Errorf("route policy: login_path, user_home and admin_home must be absolute paths")
		}
		*target = CleanPath(*target)
	}
	if !p.Default.valid() {
		return fmt.Errorf("route policy: unknown default access %q", p.Default)
	}

	for i := range p.Rules {
		r := &p.Rules[i]
		if !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("route policy: rule prefix %q must start with /", r.Prefix)
		}
		if !r.Access.valid() {
			return fmt.Errorf("route policy: unknown access %q for %s", r.Access, r.Prefix)
		}
		r.Prefix = CleanPath(r.Prefix)
	}

	// Longest prefix first so the first match is the most specific.
	sort.SliceStable(p.Rules, func(i, j int) bool {
		return len(p.Rules[i].Prefix) > len(p.Rules[j].Prefix)
	})

	if p.AccessFor(p.LoginPath) != AccessPublic {
		return fmt.Errorf("route policy: login path %s must be public", p.LoginPath)
	}
	return nil
}

// AccessFor returns the access level required for urlPath.
func (p *Policy) AccessFor(urlPath string) Access {
	clean := CleanPath(urlPath)
	for _, r := range p.Rules {
		if matchPrefix(clean, r.Prefix) {
			return r.Access
		}
	}
	return p.Default
}

// CleanPath normalizes a request path: rooted, no dot segments, no
// trailing slash.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func matchPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
