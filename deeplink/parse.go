package deeplink

import (
	"net/url"
	"strconv"
	"strings"
)

// ClientConfig carries the redirect settings the identity backend was registered with.
type ClientConfig struct {
	// Scheme is the custom redirect scheme, e.g. "myapp-auth". Required.
	Scheme string
	// Host optionally pins the authority part for https-style redirects
	// ("https://auth.example.com/login"). When empty the first path element of a
	// custom-scheme URL is read from the authority ("myapp-auth://login").
	Host string
}

const (
	pathLogin    = "login"
	pathPassword = "password"
	pathValidate = "validate"

	contextSignup = "signup"
	contextLogin  = "login"
)

// Parse classifies rawURL. It returns false if the URL does not match the
// configured redirect scheme (and host, when configured), names an unknown action,
// or misses a required parameter.
func Parse(rawURL string, cfg ClientConfig) (Payload, bool) {
	if cfg.Scheme == "" || rawURL == "" {
		return Payload{}, false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Payload{}, false
	}
	if !strings.EqualFold(u.Scheme, cfg.Scheme) {
		return Payload{}, false
	}

	action, ok := actionOf(u, cfg)
	if !ok {
		return Payload{}, false
	}
	q := u.Query()

	switch action {
	case pathLogin:
		r := Login()
		return Payload{Route: &r}, true

	case pathPassword:
		email := strings.TrimSpace(q.Get("email"))
		if email == "" {
			return Payload{}, false
		}
		r := EnterPassword(email, splitScopes(q.Get("scopes")))
		return Payload{
			Route:  &r,
			Launch: &LaunchPayload{Kind: LaunchAfterForgotPassword, Email: email},
		}, true

	case pathValidate:
		code := strings.TrimSpace(q.Get("code"))
		if code == "" {
			return Payload{}, false
		}
		persist := parseBool(q.Get("persist"), true)
		r := ValidateAuthCode(code, persist)
		p := Payload{Route: &r}
		switch strings.ToLower(q.Get("context")) {
		case contextSignup:
			p.Launch = &LaunchPayload{Kind: LaunchCodeAfterSignup, Code: code, ShouldPersistUser: persist}
		case contextLogin:
			p.Launch = &LaunchPayload{Kind: LaunchCodeAfterUnvalidatedLogin, Code: code}
		}
		return p, true
	}
	return Payload{}, false
}

func actionOf(u *url.URL, cfg ClientConfig) (string, bool) {
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if cfg.Host != "" {
		if !strings.EqualFold(u.Host, cfg.Host) || len(segments) != 1 {
			return "", false
		}
		return strings.ToLower(segments[0]), true
	}
	// custom scheme: myapp-auth://login or myapp-auth:///login
	switch {
	case u.Host != "" && len(segments) == 0:
		return strings.ToLower(u.Host), true
	case u.Host == "" && len(segments) == 1:
		return strings.ToLower(segments[0]), true
	case u.Opaque != "":
		return strings.ToLower(u.Opaque), true
	}
	return "", false
}

func splitScopes(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	if len(parts) == 0 {
		return nil
	}
	return parts
}

func parseBool(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
