// Package store keeps design runs in a bolt database and indexes the text
// of their reports for search.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xoviat/capsynth/lib"
	"github.com/xoviat/capsynth/lib/array"
	"github.com/xoviat/capsynth/lib/flow"
	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/optim"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrField    = errors.New("store: unknown constraint field")
)

var (
	bucketRuns        = []byte("results")
	bucketRounds      = []byte("rounds")
	bucketConstraints = []byte("constraints")
	bucketArrays      = []byte("arrays")
	// keys are removed from unindexed once they are in the search index
	bucketUnindexed = []byte("unindexed")
)

const (
	kindRound = "round"
	kindArray = "array"
)

type Store struct {
	db    *bolt.DB
	index bleve.Index
	log   *zap.Logger
}

// Open creates or opens the database at path. The search index lives next
// to it.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketRuns, bucketRounds, bucketConstraints, bucketArrays, bucketUnindexed} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create buckets")
	}

	var index bleve.Index
	ipath := strings.TrimSuffix(path, filepath.Ext(path)) + ".index"
	if lib.Exists(ipath) {
		index, err = bleve.Open(ipath)
	} else {
		index, err = bleve.New(ipath, bleve.NewIndexMapping())
	}
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "open index %s", ipath)
	}

	return &Store{db: db, index: index, log: log.Named("store")}, nil
}

func (s *Store) Close() error {
	ierr := s.index.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return ierr
}

func put(b *bolt.Bucket, key string, v interface{}) error {
	data, err := lib.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return b.Put([]byte(key), data)
}

func get(b *bolt.Bucket, key string, v interface{}) error {
	data := b.Get([]byte(key))
	if data == nil {
		return errors.Wrapf(ErrNotFound, "%s", key)
	}
	return errors.Wrapf(lib.Unmarshal(data, v), "decode %s", key)
}

func putArray(tx *bolt.Tx, rec *ArrayRecord) error {
	if err := put(tx.Bucket(bucketArrays), rec.Key(), rec); err != nil {
		return err
	}
	return tx.Bucket(bucketUnindexed).Put([]byte(kindArray+":"+rec.Key()), nil)
}

// SaveRun stores run with every round of every attempt and every array
// assembled from it. runErr is the error the run ended with, if any. The
// new reports are indexed before SaveRun returns.
func (s *Store) SaveRun(run *flow.Run, runErr error) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		rounds := tx.Bucket(bucketRounds)
		unindexed := tx.Bucket(bucketUnindexed)

		if err := put(tx.Bucket(bucketRuns), run.ID, newRunRecord(run, runErr)); err != nil {
			return err
		}
		for attempt, a := range run.Attempts {
			if a.Result == nil {
				continue
			}
			for i := range a.Result.Rounds {
				rec := newRoundRecord(run.ID, run.Cell, attempt, &a.Result.Rounds[i])
				if err := put(rounds, rec.Key(), rec); err != nil {
					return err
				}
				if err := unindexed.Put([]byte(kindRound+":"+rec.Key()), nil); err != nil {
					return err
				}
			}
		}

		for _, l := range run.Arrays {
			if err := putArray(tx, newArrayRecord(run.ID, l)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "save run %s", run.ID)
	}

	s.log.Info("saved run", zap.String("run", run.ID), zap.String("cell", run.Cell))
	_, err = s.Reindex()
	return err
}

func (s *Store) Run(id string) (*RunRecord, error) {
	rec := &RunRecord{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx.Bucket(bucketRuns), id, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Runs lists the runs of cell, or of every cell when cell is empty, oldest
// first.
func (s *Store) Runs(cell string) ([]*RunRecord, error) {
	var out []*RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			rec := &RunRecord{}
			if err := lib.Unmarshal(v, rec); err != nil {
				return errors.Wrapf(err, "decode %s", k)
			}
			if cell == "" || rec.Cell == cell {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Started.Before(out[j].Started)
	})
	return out, nil
}

// Latest is the most recent run of cell.
func (s *Store) Latest(cell string) (*RunRecord, error) {
	runs, err := s.Runs(cell)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "no runs of %q", cell)
	}
	return runs[len(runs)-1], nil
}

// Rounds returns the rounds of a run in attempt and round order.
func (s *Store) Rounds(id string) ([]*RoundRecord, error) {
	var out []*RoundRecord
	prefix := []byte(id + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRounds).Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			rec := &RoundRecord{}
			if err := lib.Unmarshal(v, rec); err != nil {
				return errors.Wrapf(err, "decode %s", k)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// SaveArray adds an array assembled later from the cells of run id.
func (s *Store) SaveArray(id string, l *array.Layout) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		rec := &RunRecord{}
		runs := tx.Bucket(bucketRuns)
		if err := get(runs, id, rec); err != nil {
			return err
		}
		name := l.Spec.Name
		found := false
		for _, a := range rec.Arrays {
			found = found || a == name
		}
		if !found {
			rec.Arrays = append(rec.Arrays, name)
		}
		if err := put(runs, id, rec); err != nil {
			return err
		}
		return putArray(tx, newArrayRecord(id, l))
	})
	if err != nil {
		return errors.Wrapf(err, "save array of run %s", id)
	}
	_, err = s.Reindex()
	return err
}

// Arrays returns the arrays of run id in name order.
func (s *Store) Arrays(id string) ([]*ArrayRecord, error) {
	var out []*ArrayRecord
	prefix := id + "/"
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketArrays).Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			rec := &ArrayRecord{}
			if err := lib.Unmarshal(v, rec); err != nil {
				return errors.Wrapf(err, "decode %s", k)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// SetConstraint raises the floor of field for cell. Floors never drop: a
// lower value than the stored one is ignored.
func (s *Store) SetConstraint(cell, field string, v float64) error {
	if _, err := (geom.ParameterSet{}).Get(field); err != nil {
		return errors.Wrapf(ErrField, "%q", field)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConstraints)
		c := optim.Constraints{}
		if err := get(b, cell, &c); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return put(b, cell, c.Merge(optim.Constraints{field: v}))
	})
}

// Constraints are the stored floors of cell; empty when none are set.
func (s *Store) Constraints(cell string) (optim.Constraints, error) {
	c := optim.Constraints{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx.Bucket(bucketConstraints), cell, &c)
	})
	if errors.Is(err, ErrNotFound) {
		return optim.Constraints{}, nil
	}
	return c, err
}

// ClearConstraints drops every floor of cell.
func (s *Store) ClearConstraints(cell string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConstraints).Delete([]byte(cell))
	})
}
