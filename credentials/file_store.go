package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const credentialsFileMode = 0o600

// FileStore keeps credentials in a JSON file. Writes go through a temp file
// and a rename, so a crash mid-write leaves either the old pair or the new
// pair on disk, never a torn update.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Load() (Credentials, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, errors.Wrap(err, "FileStore.Load ReadFile")
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, errors.Wrap(err, "FileStore.Load Unmarshal")
	}
	return creds, nil
}

func (fs *FileStore) Save(creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "FileStore.Save Marshal")
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "FileStore.Save MkdirAll")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "FileStore.Save CreateTemp")
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(credentialsFileMode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "FileStore.Save Chmod")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "FileStore.Save Write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "FileStore.Save Close")
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "FileStore.Save Rename")
	}
	return nil
}

func (fs *FileStore) Clear() error {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "FileStore.Clear Remove")
	}
	return nil
}
