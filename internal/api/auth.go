package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/AaronLay10/SentientNarrative/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// AuthConfig holds Basic auth credentials. Auth is enabled only when admin
// credentials are set.
type AuthConfig struct {
	AdminUser    string
	AdminPass    string
	OperatorUser string
	OperatorPass string
}

func (c *AuthConfig) enabled() bool {
	return c != nil && c.AdminUser != "" && c.AdminPass != ""
}

var auth *AuthConfig

// LoadAuth reads the operator API logins from the environment. See
// config.LoadCredentials for the variables and the *_FILE convention.
func LoadAuth() (*AuthConfig, error) {
	c, err := config.LoadCredentials()
	if err != nil {
		return nil, fmt.Errorf("load auth: %w", err)
	}
	return &AuthConfig{
		AdminUser:    c.AdminUser,
		AdminPass:    c.AdminPass,
		OperatorUser: c.OperatorUser,
		OperatorPass: c.OperatorPass,
	}, nil
}

// SetAuth installs the credentials used by RequireRole. Nil disables auth.
func SetAuth(cfg *AuthConfig) {
	auth = cfg
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth.enabled()
}

// authenticate checks basic auth credentials and returns the role if valid.
// Returns empty string if credentials are invalid.
func authenticate(r *http.Request) Role {
	if !auth.enabled() {
		return RoleAdmin // No auth configured = full access
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	if secureCompare(user, auth.AdminUser) && secureCompare(pass, auth.AdminPass) {
		return RoleAdmin
	}
	if auth.OperatorUser != "" && auth.OperatorPass != "" {
		if secureCompare(user, auth.OperatorUser) && secureCompare(pass, auth.OperatorPass) {
			return RoleOperator
		}
	}
	return ""
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RequireRole wraps a handler and requires one of the specified roles.
func RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		if role == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="Sentient Narrative"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole wraps a handler requiring admin OR operator role.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin wraps a handler requiring admin role only.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin)
}
