package algorithm

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
	"github.com/p-arndt/arenacall/protocol"
)

// Open performs the handshake with the driver watching cfg.SandboxDir and
// connects to the per-process pipes it announces. sourcePath and
// interfacePath are passed through to the driver untouched.
//
// Every failure is a *ConfigurationError; nothing is retried and no stream
// is left open.
func Open(cfg Config, sourcePath, interfacePath string, logger *slog.Logger) (*Algorithm, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.SandboxDir == "" {
		return nil, &ConfigurationError{Key: protocol.EnvSandboxDir, Err: ErrNotConfigured}
	}
	if err := checkSandboxDir(cfg.SandboxDir); err != nil {
		return nil, &ConfigurationError{Key: "sandbox dir", Err: err}
	}

	processDir, err := handshake(cfg, sourcePath, interfacePath, logger)
	if err != nil {
		return nil, err
	}

	// The driver opens its ends in this order; swapping them deadlocks.
	down, err := os.OpenFile(protocol.DownwardPath(processDir), os.O_WRONLY, 0)
	if err != nil {
		return nil, &ConfigurationError{Key: protocol.DriverDownwardPipe, Err: err}
	}
	up, err := os.Open(protocol.UpwardPath(processDir))
	if err != nil {
		down.Close()
		return nil, &ConfigurationError{Key: protocol.DriverUpwardPipe, Err: err}
	}

	a := New(down, up, logger)
	a.endpoint = Endpoint{SandboxDir: cfg.SandboxDir, ProcessDir: processDir}
	logger.Info("connected to sandbox driver",
		"sandbox_dir", cfg.SandboxDir, "process_dir", processDir)
	return a, nil
}

// handshake writes the three submission records and reads back the
// process directory.
func handshake(cfg Config, sourcePath, interfacePath string, logger *slog.Logger) (string, error) {
	if cfg.HandshakeLock != "" {
		lock := flock.New(cfg.HandshakeLock)
		if err := lock.Lock(); err != nil {
			return "", &ConfigurationError{Key: "handshake lock", Err: err}
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Warn("releasing handshake lock", "path", cfg.HandshakeLock, "error", err)
			}
		}()
	}

	records := []struct {
		name, value string
	}{
		{protocol.LanguageNamePipe, cfg.LanguageName},
		{protocol.SourcePathPipe, sourcePath},
		{protocol.InterfacePathPipe, interfacePath},
	}
	for _, r := range records {
		if err := writeRecord(protocol.HandshakePath(cfg.SandboxDir, r.name), r.value); err != nil {
			return "", &ConfigurationError{Key: r.name, Err: err}
		}
	}

	dir, err := readProcessDir(protocol.HandshakePath(cfg.SandboxDir, protocol.SandboxProcessDirPipe))
	if err != nil {
		return "", &ConfigurationError{Key: protocol.SandboxProcessDirPipe, Err: err}
	}
	return protocol.ProcessDir(cfg.SandboxDir, dir), nil
}

// writeRecord opens an existing pipe, so a missing driver is reported
// instead of silently creating a regular file.
func writeRecord(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func readProcessDir(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return protocol.NewReader(f).Token("sandbox process dir")
}
