//go:build unix

package algorithm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// checkSandboxDir verifies the sandbox directory exists and can be searched.
func checkSandboxDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if err := unix.Access(dir, unix.X_OK); err != nil {
		return fmt.Errorf("access %s: %w", dir, err)
	}
	return nil
}
