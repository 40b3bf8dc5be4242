package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups this app's secrets in the OS keychain.
	KeyringService = "jobintel"
)

var ErrNoPassword = errors.New("feed password not found (set it in the keychain or via env)")

// FeedAccount is the keyring account holding the basic-auth password for a
// feed source.
func FeedAccount(source, user string) string {
	return fmt.Sprintf("jobintel:feed:%s:%s", strings.ToLower(strings.TrimSpace(source)), strings.TrimSpace(user))
}

// EnvVar is the environment fallback, e.g. JOBINTEL_FEED_PASSWORD_WEWORKREMOTELY.
func EnvVar(source string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(source)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return "JOBINTEL_FEED_PASSWORD_" + b.String()
}

// GetFeedPassword checks the keyring first, then the environment.
func GetFeedPassword(source, user string) (string, error) {
	if strings.TrimSpace(user) != "" {
		pw, err := keyring.Get(KeyringService, FeedAccount(source, user))
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if pw := os.Getenv(EnvVar(source)); strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	return "", ErrNoPassword
}

func SetFeedPassword(source, user, password string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(user) == "" {
		return errors.New("source and user are required")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, FeedAccount(source, user), password)
}

func DeleteFeedPassword(source, user string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(user) == "" {
		return errors.New("source and user are required")
	}
	err := keyring.Delete(KeyringService, FeedAccount(source, user))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNoPassword
	}
	return err
}
