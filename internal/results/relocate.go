package results

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Relocate moves the pipeline's staging directory into the job's namespace
// directory, replacing any previous contents. A missing staging directory
// is not an error here; Collect reports the absent artifacts.
func Relocate(stagingDir, outputDir string) error {
	if stagingDir == "" || outputDir == "" {
		return errors.New("staging and output directories required")
	}

	info, err := os.Stat(stagingDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat staging directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("staging path %s is not a directory", stagingDir)
	}

	src, err := filepath.Abs(stagingDir)
	if err != nil {
		return err
	}
	dst, err := filepath.Abs(outputDir)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}

	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("clear output directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create output namespace: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename fails across filesystems; fall back to copying.
	if err := copyTree(src, dst); err != nil {
		return fmt.Errorf("relocate artifacts: %w", err)
	}
	return os.RemoveAll(src)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
