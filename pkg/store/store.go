// Package store persists session state (global variables, macros, and
// world definitions) in a bbolt database so a client restart picks up
// where the last session left off. Macros are keyed by their sequence
// number so a restored registry keeps its definition order.
package store

import (
	"fmt"
	"strings"

	bbolt "go.etcd.io/bbolt"

	"github.com/crystal-mush/gofugue/pkg/script"
	"github.com/crystal-mush/gofugue/pkg/world"
)

// Store wraps a bbolt database holding one client's session state.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVars, bucketMacros, bucketWorlds, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
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

// PutVar persists a single global variable (write-through).
func (s *Store) PutVar(name, value string, exported bool) error {
	data, err := encodeVar(&varRecord{Name: name, Value: value, Exported: exported})
	if err != nil {
		return fmt.Errorf("store: encode var %q: %w", name, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVars).Put([]byte(name), data)
	})
}

// DeleteVar removes a global variable.
func (s *Store) DeleteVar(name string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVars).Delete([]byte(name))
	})
}

// PutMacro persists a single macro under its sequence number.
func (s *Store) PutMacro(m *script.Macro) error {
	data, err := encodeMacro(m)
	if err != nil {
		return fmt.Errorf("store: encode macro %q: %w", m.Name, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMacros).Put(intToKey(m.Seq), data)
	})
}

// DeleteMacro removes a macro by sequence number.
func (s *Store) DeleteMacro(seq int) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMacros).Delete(intToKey(seq))
	})
}

// PutWorld persists a world definition, keyed by lowercase name.
func (s *Store) PutWorld(w world.Info) error {
	data, err := encodeWorld(&w)
	if err != nil {
		return fmt.Errorf("store: encode world %q: %w", w.Name, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketWorlds).Put([]byte(strings.ToLower(w.Name)), data)
	})
}

// DeleteWorld removes a world definition.
func (s *Store) DeleteWorld(name string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketWorlds).Delete([]byte(strings.ToLower(name)))
	})
}

// SaveSession replaces the stored session with the engine's current
// globals and macros plus the registry's worlds, in one transaction.
func (s *Store) SaveSession(e *script.Engine, reg *world.Registry) error {
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVars, bucketMacros, bucketWorlds} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		vb := tx.Bucket(bucketVars)
		for _, name := range e.Vars.GlobalNames() {
			v, _ := e.Vars.Global(name)
			data, err := encodeVar(&varRecord{
				Name:     name,
				Value:    v.Text(),
				Exported: e.Vars.IsExported(name),
			})
			if err != nil {
				return fmt.Errorf("encode var %q: %w", name, err)
			}
			if err := vb.Put([]byte(name), data); err != nil {
				return err
			}
		}

		mb := tx.Bucket(bucketMacros)
		for _, m := range e.Macros() {
			data, err := encodeMacro(m)
			if err != nil {
				return fmt.Errorf("encode macro %q: %w", m.Name, err)
			}
			if err := mb.Put(intToKey(m.Seq), data); err != nil {
				return err
			}
		}
		// The live counter, not max surviving seq: an undeffed macro's
		// number must stay retired across restarts.
		if err := tx.Bucket(bucketMeta).Put(keyNextSeq, intToKey(e.NextSeq())); err != nil {
			return err
		}

		wb := tx.Bucket(bucketWorlds)
		for _, name := range reg.Names() {
			w, ok := reg.Get(name)
			if !ok {
				continue
			}
			data, err := encodeWorld(&w)
			if err != nil {
				return fmt.Errorf("encode world %q: %w", name, err)
			}
			if err := wb.Put([]byte(strings.ToLower(name)), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: save session: %w", err)
	}
	return nil
}

// LoadSession restores stored globals and macros into the engine and
// stored worlds into the registry. Macros come back under their original
// sequence numbers, so firing order survives a restart.
func (s *Store) LoadSession(e *script.Engine, reg *world.Registry) error {
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		vb := tx.Bucket(bucketVars)
		if err := vb.ForEach(func(k, v []byte) error {
			rec, err := decodeVar(v)
			if err != nil {
				return fmt.Errorf("decode var %q: %w", string(k), err)
			}
			e.Vars.SetGlobal(rec.Name, script.ParseValue(rec.Value))
			if rec.Exported {
				e.Vars.Export(rec.Name)
			}
			return nil
		}); err != nil {
			return err
		}

		mb := tx.Bucket(bucketMacros)
		if err := mb.ForEach(func(k, v []byte) error {
			m, err := decodeMacro(v)
			if err != nil {
				return fmt.Errorf("decode macro seq %d: %w", keyToInt(k), err)
			}
			e.RestoreMacro(m)
			return nil
		}); err != nil {
			return err
		}
		if v := tx.Bucket(bucketMeta).Get(keyNextSeq); v != nil {
			e.AdvanceSeq(keyToInt(v))
		}

		wb := tx.Bucket(bucketWorlds)
		return wb.ForEach(func(k, v []byte) error {
			w, err := decodeWorld(v)
			if err != nil {
				return fmt.Errorf("decode world %q: %w", string(k), err)
			}
			reg.Add(*w)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("store: load session: %w", err)
	}
	return nil
}

// HasData reports whether any macros have been stored.
func (s *Store) HasData() bool {
	has := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketMacros).Stats().KeyN > 0 {
			has = true
		}
		return nil
	})
	return has
}
