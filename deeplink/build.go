package deeplink

import (
	"net/url"
	"strconv"
	"strings"
)

// CodeContext says which launch a validation link resumes.
type CodeContext string

const (
	CodeContextNone   CodeContext = ""
	CodeContextSignup CodeContext = contextSignup
	CodeContextLogin  CodeContext = contextLogin
)

// PasswordURL builds the reset redirect that Parse reads back as an
// EnterPassword route with an AfterForgotPassword launch.
func PasswordURL(cfg ClientConfig, email string, scopes []string) string {
	q := url.Values{}
	q.Set("email", email)
	if len(scopes) > 0 {
		q.Set("scopes", strings.Join(scopes, ","))
	}
	return build(cfg, pathPassword, q)
}

// ValidateURL builds the verification link carrying code.
func ValidateURL(cfg ClientConfig, code string, ctx CodeContext, persist bool) string {
	q := url.Values{}
	q.Set("code", code)
	if ctx != CodeContextNone {
		q.Set("context", string(ctx))
	}
	if !persist {
		q.Set("persist", strconv.FormatBool(persist))
	}
	return build(cfg, pathValidate, q)
}

// LoginURL builds the plain login redirect.
func LoginURL(cfg ClientConfig) string { return build(cfg, pathLogin, nil) }

func build(cfg ClientConfig, action string, q url.Values) string {
	u := url.URL{Scheme: cfg.Scheme, RawQuery: q.Encode()}
	if cfg.Host != "" {
		u.Host = cfg.Host
		u.Path = "/" + action
	} else {
		u.Host = action
	}
	return u.String()
}
