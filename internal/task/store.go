package task

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/bamsammich/banana/internal/atomicfile"
)

// ErrNotFound is returned when a task name is not defined.
var ErrNotFound = errors.New("task not found")

type document struct {
	Tasks []Task `toml:"task"`
}

// Store persists task definitions in a TOML file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by the file at path. The file need not
// exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// List returns all tasks sorted by name.
func (s *Store) List() ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the task with the given name.
func (s *Store) Get(name string) (Task, error) {
	tasks, err := s.List()
	if err != nil {
		return Task{}, err
	}
	for _, t := range tasks {
		if t.Name == name {
			return t, nil
		}
	}
	return Task{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Put inserts or replaces a task. When no task has the new name but an
// existing task is identical apart from its name, that task is renamed.
// The previous name is returned in that case, otherwise "".
func (s *Store) Put(t Task) (renamedFrom string, err error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return "", errors.New("task name must be set")
	}
	if t.Source == "" || t.Destination == "" {
		return "", errors.New("source and destination must be set")
	}
	if err := t.Schedule.Validate(); err != nil {
		return "", fmt.Errorf("schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return "", err
	}

	replaced := false
	for i := range tasks {
		if tasks[i].Name == t.Name {
			tasks[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		for i := range tasks {
			if Equivalent(tasks[i], t) {
				renamedFrom = tasks[i].Name
				tasks = append(tasks[:i], tasks[i+1:]...)
				break
			}
		}
		tasks = append(tasks, t)
	}

	return renamedFrom, s.save(tasks)
}

// Delete removes the named task.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return err
	}
	for i := range tasks {
		if tasks[i].Name == name {
			return s.save(append(tasks[:i], tasks[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (s *Store) load() ([]Task, error) {
	var doc document
	if _, err := toml.DecodeFile(s.path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tasks %s: %w", s.path, err)
	}
	sort.Slice(doc.Tasks, func(i, j int) bool { return doc.Tasks[i].Name < doc.Tasks[j].Name })
	return doc.Tasks, nil
}

func (s *Store) save(tasks []Task) error {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(document{Tasks: tasks}); err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	if err := atomicfile.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write tasks: %w", err)
	}
	return nil
}
