package config

import (
	"fmt"
	"os"
	"strings"
)

// Secret environment variables. Each may instead name a file through the
// same variable with a _FILE suffix.
const (
	SecretPGPassword   = "PGPASSWORD"
	SecretAdminUser    = "SENTIENT_ADMIN_USER"
	SecretAdminPass    = "SENTIENT_ADMIN_PASS"
	SecretOperatorUser = "SENTIENT_OPERATOR_USER"
	SecretOperatorPass = "SENTIENT_OPERATOR_PASS"
)

// ResolveSecret returns the value of envName. envName_FILE takes
// precedence: the file is read and trimmed. Neither set yields "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if path := os.Getenv(fileEnv); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			// The path is reported, never the content.
			return "", fmt.Errorf("read secret %s=%s: %w", fileEnv, path, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// Credentials are the Basic auth logins for the operator API.
type Credentials struct {
	AdminUser    string
	AdminPass    string
	OperatorUser string
	OperatorPass string
}

// LoadCredentials resolves the operator API logins. A user without its
// password, or the reverse, is rejected so auth is never half configured.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	for _, s := range []struct {
		env string
		dst *string
	}{
		{SecretAdminUser, &c.AdminUser},
		{SecretAdminPass, &c.AdminPass},
		{SecretOperatorUser, &c.OperatorUser},
		{SecretOperatorPass, &c.OperatorPass},
	} {
		v, err := ResolveSecret(s.env)
		if err != nil {
			return Credentials{}, err
		}
		*s.dst = v
	}

	if err := pairSet(SecretAdminUser, c.AdminUser, SecretAdminPass, c.AdminPass); err != nil {
		return Credentials{}, err
	}
	if err := pairSet(SecretOperatorUser, c.OperatorUser, SecretOperatorPass, c.OperatorPass); err != nil {
		return Credentials{}, err
	}
	if c.OperatorUser != "" && c.AdminUser == "" {
		return Credentials{}, fmt.Errorf("%s requires %s", SecretOperatorUser, SecretAdminUser)
	}
	return c, nil
}

func pairSet(userEnv, user, passEnv, pass string) error {
	switch {
	case user != "" && pass == "":
		return fmt.Errorf("%s set without %s", userEnv, passEnv)
	case user == "" && pass != "":
		return fmt.Errorf("%s set without %s", passEnv, userEnv)
	}
	return nil
}
