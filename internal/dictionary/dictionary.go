package dictionary

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Dictionary maps a canonical oblast name to the aliases known for it.
// Each alias maps to a subregion label: a specific raion for the one oblast
// whose subdivisions matter, or the oblast name itself for oblasts treated
// as a single unit. Aliases are stored already normalized.
type Dictionary map[string]map[string]string

// Set records an alias under a region, creating the region bucket on first use.
func (d Dictionary) Set(region, alias, label string) {
	if d[region] == nil {
		d[region] = make(map[string]string)
	}
	d[region][alias] = label
}

// Delete removes an alias. A missing region or alias is not an error.
func (d Dictionary) Delete(region, alias string) {
	if m, ok := d[region]; ok {
		delete(m, alias)
		if len(m) == 0 {
			delete(d, region)
		}
	}
}

// Regions returns the region names present in the dictionary, sorted.
func (d Dictionary) Regions() []string {
	regions := make([]string, 0, len(d))
	for r := range d {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}

// PersistenceError reports a failed dictionary write. It is surfaced to the
// administrator rather than swallowed: a silent save failure would leave the
// in-memory and on-disk copies desynced with no visible symptom until the
// next restart.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("dictionary persistence failed for %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store persists the dictionary as a single human-editable YAML file at a
// fixed path.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the dictionary from disk. A missing file is not an error: an
// empty dictionary is created and persisted so the first run leaves a file
// the operator can edit by hand.
func (s *Store) Load() (Dictionary, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		d := Dictionary{}
		if saveErr := s.write(d); saveErr != nil {
			return nil, saveErr
		}
		return d, nil
	}
	if err != nil {
		return nil, &PersistenceError{Path: s.path, Err: err}
	}

	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, &PersistenceError{Path: s.path, Err: err}
	}
	if d == nil {
		d = Dictionary{}
	}
	return d, nil
}

// Save writes the dictionary and reads it back, returning the reloaded copy.
// The reload keeps the in-memory view identical to what a restart would see.
func (s *Store) Save(d Dictionary) (Dictionary, error) {
	if err := s.write(d); err != nil {
		return nil, err
	}
	return s.Load()
}

func (s *Store) write(d Dictionary) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	return nil
}
