package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	errStoreFileIsDir = errors.New("store file is dir")
)

// jsonStore persists the key-value map as a single JSON file. Every
// mutation rewrites the file so a crash never loses a committed write.
type jsonStore struct {
	path string
	log  *zap.Logger

	mu   sync.Mutex
	data map[string]string
}

func newJSON(p Params) (*jsonStore, error) {
	s := &jsonStore{
		path: p.Config.Storage.Path,
		log:  p.Log,
		data: map[string]string{},
	}

	err := s.readfile()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		// only log, an unreadable file behaves as an empty store
		s.log.Warn("failed reading store data file", zap.Error(err))
	}

	return s, nil
}

func (s *jsonStore) readfile() error {
	finfo, err := os.Stat(s.path)
	if err != nil {
		return err
	}

	if finfo.IsDir() {
		return errStoreFileIsDir
	}

	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewDecoder(f).Decode(&s.data)
}

func (s *jsonStore) writefile() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, b, 0o600)
}

func (s *jsonStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}

	return v, nil
}

func (s *jsonStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return s.writefile()
}

func (s *jsonStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}

	delete(s.data, key)
	return s.writefile()
}
