package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// Source describes how to load a secret value.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name string
	// Value is an inline secret value provided via configuration or flags.
	Value string
	// File points to a file containing the secret value. When set it takes
	// precedence over Value.
	File string
	// Service and User address an entry in the OS keyring. The keyring is
	// consulted only when neither File nor Value yield a secret.
	Service string
	User    string
}

// Load returns the resolved secret value from the provided source. Resolution
// order is File, then Value, then the OS keyring. The returned secret is
// always trimmed. An error is returned when no source contains a usable
// secret.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	service := strings.TrimSpace(src.Service)
	user := strings.TrimSpace(src.User)
	if service != "" && user != "" {
		secret, err := keyring.Get(service, user)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("reading %s from keyring %s/%s: %w", name, service, user, err)
		}
		if secret = strings.TrimSpace(secret); secret != "" {
			return secret, nil
		}
	}

	return "", fmt.Errorf("%s is not configured", name)
}
