package attachment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/spf13/afero"
)

const defaultMimeType = "application/octet-stream"

// Store writes uploads under <dir>/<task id>/.
type Store struct {
	fs  afero.Fs
	dir string
}

func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Save copies r into the task directory and returns the record to persist.
// A name already taken in that directory becomes "name N.ext".
func (s *Store) Save(taskID, fileName string, r io.Reader) (model.AttachmentRecord, error) {
	name := filepath.Base(filepath.Clean("/" + fileName))
	if name == "/" || name == "." {
		return model.AttachmentRecord{}, fmt.Errorf("invalid attachment name %q", fileName)
	}

	taskDir := filepath.Join(s.dir, taskID)
	if err := s.fs.MkdirAll(taskDir, 0o755); err != nil {
		return model.AttachmentRecord{}, err
	}

	path, f, err := s.create(taskDir, name)
	if err != nil {
		return model.AttachmentRecord{}, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		_ = s.fs.Remove(path)
		return model.AttachmentRecord{}, fmt.Errorf("write %s: %w", path, err)
	}

	return model.AttachmentRecord{
		TaskID:   taskID,
		FileName: name,
		FilePath: path,
		MimeType: MimeType(name),
		FileSize: n,
		Checksum: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func (s *Store) create(dir, name string) (string, afero.File, error) {
	for i := 0; ; i++ {
		path := filepath.Join(dir, numbered(name, i))
		f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return path, f, nil
		}
		if !os.IsExist(err) {
			return "", nil, err
		}
	}
}

// numbered returns name for n == 0, otherwise "base n.ext" (or "name n" without an extension).
func numbered(name string, n int) string {
	if n == 0 {
		return name
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		return fmt.Sprintf("%s %d.%s", name[:i], n, name[i+1:])
	}
	return fmt.Sprintf("%s %d", name, n)
}

// MimeType guesses from the file extension.
func MimeType(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return defaultMimeType
}

// Discard removes everything saved for taskID.
func (s *Store) Discard(taskID string) error {
	return s.fs.RemoveAll(filepath.Join(s.dir, taskID))
}
