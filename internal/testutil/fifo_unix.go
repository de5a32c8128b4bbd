//go:build unix

package testutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/p-arndt/arenacall/protocol"
)

// SandboxDir creates a sandbox directory laid out like the real driver's:
// the four handshake FIFOs, plus a process directory holding the two
// stream FIFOs. It returns the sandbox directory.
func SandboxDir(t *testing.T, processDir string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{
		protocol.LanguageNamePipe,
		protocol.SourcePathPipe,
		protocol.InterfacePathPipe,
		protocol.SandboxProcessDirPipe,
	} {
		mkfifo(t, protocol.HandshakePath(dir, name))
	}

	proc := protocol.ProcessDir(dir, processDir)
	if err := os.MkdirAll(proc, 0755); err != nil {
		t.Fatalf("create process dir: %v", err)
	}
	mkfifo(t, protocol.DownwardPath(proc))
	mkfifo(t, protocol.UpwardPath(proc))
	return dir
}

func mkfifo(t *testing.T, path string) {
	t.Helper()
	if err := unix.Mkfifo(path, 0600); err != nil {
		t.Fatalf("mkfifo %s: %v", path, err)
	}
}

// StartFIFO answers the handshake in sandboxDir, announcing processDir,
// then runs the script over the stream FIFOs.
func (d *Driver) StartFIFO(sandboxDir, processDir string) {
	d.g.Go(func() error {
		var err error
		if d.Language, err = readFIFO(protocol.HandshakePath(sandboxDir, protocol.LanguageNamePipe)); err != nil {
			return err
		}
		if d.Source, err = readFIFO(protocol.HandshakePath(sandboxDir, protocol.SourcePathPipe)); err != nil {
			return err
		}
		if d.Interface, err = readFIFO(protocol.HandshakePath(sandboxDir, protocol.InterfacePathPipe)); err != nil {
			return err
		}
		if err := writeFIFO(protocol.HandshakePath(sandboxDir, protocol.SandboxProcessDirPipe), processDir+"\n"); err != nil {
			return err
		}

		proc := protocol.ProcessDir(sandboxDir, processDir)
		down, err := os.Open(protocol.DownwardPath(proc))
		if err != nil {
			return fmt.Errorf("open downward: %w", err)
		}
		defer down.Close()
		up, err := os.OpenFile(protocol.UpwardPath(proc), os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("open upward: %w", err)
		}
		defer up.Close()

		return d.serve(down, up)
	})
}

func readFIFO(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}

func writeFIFO(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
