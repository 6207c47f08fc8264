package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WriteAtomic writes data next to path under a unique temp name, fsyncs it,
// verifies the result on disk, and renames it into place. The target file is
// never left partially written: on any failure the temp file is removed and
// the previous snapshot stays intact.
func WriteAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := path + ".tmp." + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("verify temp snapshot: %w", err)
	}
	if info.Size() != int64(len(data)) {
		_ = os.Remove(tmp)
		return fmt.Errorf("temp snapshot size mismatch: wrote %d bytes, found %d", len(data), info.Size())
	}
	if info.Size() < MinSnapshotSize {
		_ = os.Remove(tmp)
		return fmt.Errorf("snapshot too small to be valid: %d bytes", info.Size())
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}
