package keyvalue

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// fileStore persiste el mapa completo como JSON en un archivo local.
// Es el equivalente en disco del storage del dispositivo.
type fileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore crea un store respaldado por el archivo indicado.
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

func (s *fileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load()
	if err != nil {
		return "", false, err
	}
	value, ok := items[strings.TrimSpace(key)]
	return value, ok, nil
}

func (s *fileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	items, err := s.load()
	if err != nil {
		return err
	}
	items[key] = value
	return s.save(items)
}

func (s *fileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load()
	if err != nil {
		return err
	}
	delete(items, strings.TrimSpace(key))
	return s.save(items)
}

func (s *fileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	items := make(map[string]string)
	if err := json.Unmarshal(data, &items); err != nil {
		// Archivo corrupto: se trata como vacío y se sobreescribe al guardar.
		return make(map[string]string), nil
	}
	return items, nil
}

func (s *fileStore) save(items map[string]string) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o600)
}
