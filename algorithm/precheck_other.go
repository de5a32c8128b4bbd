//go:build !unix

package algorithm

import (
	"fmt"
	"os"
)

func checkSandboxDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
