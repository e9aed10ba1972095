package api

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/nerrad567/gray-logic-assistant/internal/audit"
	"github.com/nerrad567/gray-logic-assistant/internal/auth"
)

// Login form error codes carried in the error query parameter.
const (
	loginErrInvalidUser     = "invalid_user"
	loginErrInvalidRedirect = "invalid_redirect"
)

var loginMessages = map[string]string{
	loginErrInvalidUser:     "Invalid username or password.",
	loginErrInvalidRedirect: "This sign-in request came from an unrecognised address.",
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Gray Logic sign in</title>
<style>
body{font-family:sans-serif;max-width:22rem;margin:4rem auto;padding:0 1rem}
label,input,button{display:block;width:100%;box-sizing:border-box;margin-top:.5rem}
.error{color:#b00020}
</style>
</head>
<body>
<h1>Link Gray Logic</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="{{.Action}}">
<input type="hidden" name="response_type" value="code">
<input type="hidden" name="client_id" value="{{.ClientID}}">
<input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
<input type="hidden" name="state" value="{{.State}}">
<label for="username">Username</label>
<input id="username" name="username" autocomplete="username" required autofocus>
<label for="password">Password</label>
<input id="password" name="password" type="password" autocomplete="current-password" required>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

type loginPage struct {
	Action      string
	ClientID    string
	RedirectURI string
	State       string
	Error       string
}

// handleAuthorize shows the login form after checking response_type and
// client_id.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("response_type") != "code" {
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	}
	if !s.auth.IsValidClientID(q.Get("client_id")) {
		http.Error(w, "invalid client_id", http.StatusBadRequest)
		return
	}

	page := loginPage{
		Action:      r.URL.Path,
		ClientID:    q.Get("client_id"),
		RedirectURI: q.Get("redirect_uri"),
		State:       q.Get("state"),
		Error:       loginMessages[q.Get("error")],
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := loginTemplate.Execute(w, page); err != nil {
		s.logger.Error("rendering login form", "error", err)
	}
}

// handleLogin checks the submitted credentials. Success redirects to the
// caller's redirect_uri with a fresh code; any failure redirects back to the
// form with an error code.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	clientID := r.PostForm.Get("client_id")
	redirectURI := r.PostForm.Get("redirect_uri")
	state := r.PostForm.Get("state")

	if !s.auth.IsValidClientID(clientID) {
		http.Error(w, "invalid client_id", http.StatusBadRequest)
		return
	}
	if !s.auth.IsValidRedirectURI(redirectURI, s.selfURL(r)) {
		s.logger.Warn("login with disallowed redirect", "redirect_uri", redirectURI)
		s.redirectToLogin(w, r, loginErrInvalidRedirect)
		return
	}

	user, err := auth.Authenticate(r.Context(), s.users, r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) && !errors.Is(err, auth.ErrUserInactive) {
			s.logger.Error("login failed", "error", err)
		}
		s.recordAudit(r, audit.ActionLoginFailed, r.PostForm.Get("username"), nil)
		s.redirectToLogin(w, r, loginErrInvalidUser)
		return
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		s.redirectToLogin(w, r, loginErrInvalidRedirect)
		return
	}
	q := target.Query()
	q.Set("code", s.auth.GenerateAuthCode(user.Username))
	q.Set("state", state)
	target.RawQuery = q.Encode()

	s.logger.Info("login succeeded", "user", user.Username)
	s.recordAudit(r, audit.ActionLogin, user.Username, map[string]any{"client_id": clientID})
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// redirectToLogin re-displays the form, keeping the original parameters.
func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request, code string) {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {r.PostForm.Get("client_id")},
		"redirect_uri":  {r.PostForm.Get("redirect_uri")},
		"state":         {r.PostForm.Get("state")},
		"error":         {code},
	}
	http.Redirect(w, r, r.URL.Path+"?"+q.Encode(), http.StatusFound)
}

// selfURL is the configured external base URL, or one derived from the
// request when none is configured.
func (s *Server) selfURL(r *http.Request) string {
	if s.assistant.SelfURL != "" {
		return strings.TrimRight(s.assistant.SelfURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(fwd, ",")[0]))
	}
	return scheme + "://" + r.Host
}
