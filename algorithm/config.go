package algorithm

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/p-arndt/arenacall/protocol"
)

// ErrNotConfigured is wrapped by ConfigurationError when a required value is absent.
var ErrNotConfigured = errors.New("not set")

// ConfigurationError is returned when the sandbox cannot be located or the
// handshake files cannot be used. The client is unusable after it.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Config locates the sandbox driver. It is normally filled once from the
// process environment by the generated harness.
type Config struct {
	// SandboxDir holds the handshake pipes.
	SandboxDir string
	// LanguageName is sent during the handshake. Empty lets the driver
	// detect the language itself.
	LanguageName string
	// HandshakeLock, when set, is a lock file held while the handshake
	// records are exchanged.
	HandshakeLock string
}

// ConfigFromEnv reads the sandbox directory from TURINGARENA_SANDBOX_DIR.
func ConfigFromEnv() (Config, error) {
	dir, ok := os.LookupEnv(protocol.EnvSandboxDir)
	if !ok || dir == "" {
		return Config{}, &ConfigurationError{Key: protocol.EnvSandboxDir, Err: ErrNotConfigured}
	}
	return Config{SandboxDir: dir}, nil
}

// SubmissionParameter returns the file path stored in
// SUBMISSION_FILE_<NAME>, with name upper-cased.
func SubmissionParameter(name string) (string, error) {
	key := strings.ToUpper(protocol.EnvSubmissionPrefix + name)
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", &ConfigurationError{Key: key, Err: ErrNotConfigured}
	}
	return v, nil
}
