package auth

import (
	"net"
	"net/url"
	"strings"
)

// projectPlaceholder is substituted with the project id in redirect templates.
const projectPlaceholder = "{project}"

// RedirectPolicy decides which redirect URIs may receive authorization codes.
type RedirectPolicy struct {
	// ProjectID fills the {project} placeholder in Templates.
	ProjectID string

	// Templates are the platform callback URLs, e.g.
	// "https://oauth-redirect.googleusercontent.com/r/{project}".
	Templates []string

	// VerifySelfURL also accepts any redirect under the bridge's own origin.
	VerifySelfURL bool
}

// Allows reports whether uri is acceptable. A uri is allowed when it exactly
// matches an expanded template, or, with VerifySelfURL set, when it starts
// with selfURL. The self-URL comparison ignores ports since reverse proxies
// commonly rewrite them.
func (p RedirectPolicy) Allows(uri, selfURL string) bool {
	if uri == "" {
		return false
	}
	if p.ProjectID != "" {
		for _, tmpl := range p.Templates {
			if uri == strings.ReplaceAll(tmpl, projectPlaceholder, p.ProjectID) {
				return true
			}
		}
	}
	if p.VerifySelfURL && selfURL != "" {
		return hasSelfPrefix(uri, selfURL)
	}
	return false
}

func hasSelfPrefix(uri, selfURL string) bool {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return false
	}
	self, err := url.Parse(selfURL)
	if err != nil || self.Host == "" {
		return false
	}
	if !strings.EqualFold(u.Scheme, self.Scheme) || !strings.EqualFold(hostOnly(u.Host), hostOnly(self.Host)) {
		return false
	}
	return strings.HasPrefix(u.Path, self.Path)
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
