package attach

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store persists report photos on disk and hands back a stable path. The
// report row keeps only that path; the bytes live here.
type Store struct {
	Dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Save writes the photo bytes under a fresh uuid name and returns the path.
func (s *Store) Save(data []byte) (string, error) {
	name := uuid.NewString() + ".jpg"
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return path, nil
}
