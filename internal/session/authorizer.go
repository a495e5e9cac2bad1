package session

import (
	"net/url"
	"strings"

	"github.com/mmynk/storefront/internal/models"
)

// LoginPath is the Auth step's view.
const LoginPath = "/login"

// Capability names what a gated view requires of the session.
type Capability string

const (
	// Authenticated requires any identity.
	Authenticated Capability = "authenticated"

	// Admin requires an identity with IsAdmin set.
	Admin Capability = "admin"
)

// Decision is the outcome of a guard. Redirect is empty when Allowed.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Allow is the decision that lets the view render.
func Allow() Decision {
	return Decision{Allowed: true}
}

// RedirectTo is a decision that sends the caller to path instead.
func RedirectTo(path string) Decision {
	return Decision{Redirect: path}
}

// IdentitySource exposes the current identity, nil for a guest.
type IdentitySource interface {
	Identity() *models.Identity
}

// Authorizer gates views by capability.
type Authorizer struct {
	source IdentitySource
}

// NewAuthorizer creates an Authorizer reading identities from source.
func NewAuthorizer(source IdentitySource) *Authorizer {
	return &Authorizer{source: source}
}

// Check decides whether the view at requestedPath may render for the current
// session. A failed check redirects to the login view carrying requestedPath
// as the return target.
func (a *Authorizer) Check(capability Capability, requestedPath string) Decision {
	id := a.source.Identity()
	switch {
	case id == nil:
		return RedirectTo(LoginRedirect(requestedPath))
	case capability == Admin && !id.IsAdmin:
		return RedirectTo(LoginRedirect(requestedPath))
	default:
		return Allow()
	}
}

// LoginRedirect builds the login path with path as its return target.
func LoginRedirect(path string) string {
	path = ResolveReturnPath(path)
	if path == "/" {
		return LoginPath
	}
	// Slashes are legal in a query and keep the target readable.
	return LoginPath + "?redirect=" + strings.ReplaceAll(url.QueryEscape(path), "%2F", "/")
}

// ResolveReturnPath turns a raw return target into an in-app path. Absolute
// URLs, protocol-relative paths and anything else that would leave the app
// resolve to "/".
func ResolveReturnPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.RequestURI()
}

// ReturnPathFromQuery reads the redirect parameter of a login URL's query.
func ReturnPathFromQuery(query string) string {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return "/"
	}
	return ResolveReturnPath(values.Get("redirect"))
}
