// Package boltstore persists the world's automation definitions in a
// bbolt database: triggers, aliases, timers and variables, one bucket per
// collection, keyed by name.
package boltstore

import (
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
)

// Bucket name constants for bbolt storage.
var (
	bucketTriggers  = []byte("triggers")
	bucketAliases   = []byte("aliases")
	bucketTimers    = []byte("timers")
	bucketVariables = []byte("variables")
)

// Store wraps a bbolt database holding one world's automation definitions.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketTriggers, bucketAliases, bucketTimers, bucketVariables} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}
	return &Store{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// PutTrigger persists a single trigger (write-through).
func (s *Store) PutTrigger(t *automation.Trigger) error {
	data, err := encodeTrigger(t)
	if err != nil {
		return fmt.Errorf("boltstore: encode trigger %s: %w", t.Name, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTriggers).Put([]byte(t.Name), data)
	})
}

// PutTriggers persists multiple triggers in a single transaction.
func (s *Store) PutTriggers(triggers ...*automation.Trigger) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTriggers)
		for _, t := range triggers {
			if t == nil {
				continue
			}
			data, err := encodeTrigger(t)
			if err != nil {
				return fmt.Errorf("boltstore: encode trigger %s: %w", t.Name, err)
			}
			if err := b.Put([]byte(t.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTrigger removes a trigger.
func (s *Store) DeleteTrigger(name string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTriggers).Delete([]byte(name))
	})
}

// Triggers loads every stored trigger.
func (s *Store) Triggers() ([]*automation.Trigger, error) {
	var out []*automation.Trigger
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTriggers).ForEach(func(k, v []byte) error {
			t, err := decodeTrigger(v)
			if err != nil {
				return fmt.Errorf("boltstore: decode trigger %s: %w", k, err)
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutAlias persists a single alias.
func (s *Store) PutAlias(a *automation.Alias) error {
	data, err := encodeAlias(a)
	if err != nil {
		return fmt.Errorf("boltstore: encode alias %s: %w", a.Name, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAliases).Put([]byte(a.Name), data)
	})
}

// PutAliases persists multiple aliases in a single transaction.
func (s *Store) PutAliases(aliases ...*automation.Alias) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAliases)
		for _, a := range aliases {
			if a == nil {
				continue
			}
			data, err := encodeAlias(a)
			if err != nil {
				return fmt.Errorf("boltstore: encode alias %s: %w", a.Name, err)
			}
			if err := b.Put([]byte(a.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAlias removes an alias.
func (s *Store) DeleteAlias(name string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAliases).Delete([]byte(name))
	})
}

// Aliases loads every stored alias.
func (s *Store) Aliases() ([]*automation.Alias, error) {
	var out []*automation.Alias
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAliases).ForEach(func(k, v []byte) error {
			a, err := decodeAlias(v)
			if err != nil {
				return fmt.Errorf("boltstore: decode alias %s: %w", k, err)
			}
			out = append(out, a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutTimer persists a single timer. The stored schedule fields are
// configuration only; the engine recomputes next-fire times on load.
func (s *Store) PutTimer(t *automation.Timer) error {
	data, err := encodeTimer(t)
	if err != nil {
		return fmt.Errorf("boltstore: encode timer %s: %w", t.Name, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTimers).Put([]byte(t.Name), data)
	})
}

// PutTimers persists multiple timers in a single transaction.
func (s *Store) PutTimers(timers ...*automation.Timer) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTimers)
		for _, t := range timers {
			if t == nil {
				continue
			}
			data, err := encodeTimer(t)
			if err != nil {
				return fmt.Errorf("boltstore: encode timer %s: %w", t.Name, err)
			}
			if err := b.Put([]byte(t.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTimer removes a timer.
func (s *Store) DeleteTimer(name string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTimers).Delete([]byte(name))
	})
}

// Timers loads every stored timer.
func (s *Store) Timers() ([]*automation.Timer, error) {
	var out []*automation.Timer
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTimers).ForEach(func(k, v []byte) error {
			t, err := decodeTimer(v)
			if err != nil {
				return fmt.Errorf("boltstore: decode timer %s: %w", k, err)
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutVariable persists one variable.
func (s *Store) PutVariable(name, contents string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVariables).Put([]byte(name), []byte(contents))
	})
}

// DeleteVariable removes a variable.
func (s *Store) DeleteVariable(name string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVariables).Delete([]byte(name))
	})
}

// Variables loads every stored variable.
func (s *Store) Variables() (map[string]string, error) {
	out := make(map[string]string)
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVariables).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
