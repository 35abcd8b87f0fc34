package store

import (
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// document is what the search index holds per round or array.
type document struct {
	Kind    string `json:"kind"`
	Run     string `json:"run"`
	Cell    string `json:"cell"`
	Phase   string `json:"phase"`
	Outcome string `json:"outcome"`
	Text    string `json:"text"`
}

// Hit is one search result.
type Hit struct {
	ID    string
	Kind  string
	Run   string
	Cell  string
	Score float64
}

// Reindex indexes every stored report that is not in the index yet and
// returns how many were added.
func (s *Store) Reindex() (int, error) {
	docs := map[string]document{}
	err := s.db.View(func(tx *bolt.Tx) error {
		rounds := tx.Bucket(bucketRounds)
		arrays := tx.Bucket(bucketArrays)
		runs := tx.Bucket(bucketRuns)

		return tx.Bucket(bucketUnindexed).ForEach(func(k, _ []byte) error {
			id := string(k)
			kind, key := splitID(id)
			switch kind {
			case kindRound:
				rec := &RoundRecord{}
				if err := get(rounds, key, rec); err != nil {
					return err
				}
				docs[id] = document{
					Kind:    kind,
					Run:     rec.Run,
					Cell:    rec.Cell,
					Phase:   rec.Phase,
					Outcome: rec.Outcome,
					Text:    rec.Rules + "\n" + rec.Parasitics + "\n" + rec.Err,
				}
			case kindArray:
				rec := &ArrayRecord{}
				if err := get(arrays, key, rec); err != nil {
					return err
				}
				run := &RunRecord{}
				if err := get(runs, rec.Run, run); err != nil {
					return err
				}
				docs[id] = document{
					Kind: kind,
					Run:  rec.Run,
					Cell: run.Cell,
					Text: rec.Spec.Name + "\n" + rec.Report,
				}
			default:
				return errors.Errorf("unknown index key %q", id)
			}
			return nil
		})
	})
	if err != nil {
		return 0, errors.Wrap(err, "collect unindexed")
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := s.index.NewBatch()
	for id, doc := range docs {
		if err := batch.Index(id, doc); err != nil {
			return 0, errors.Wrapf(err, "index %s", id)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return 0, errors.Wrap(err, "index batch")
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUnindexed)
		for id := range docs {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "mark indexed")
	}

	s.log.Debug("indexed", zap.Int("documents", len(docs)))
	return len(docs), nil
}

func splitID(id string) (string, string) {
	i := strings.IndexByte(id, ':')
	if i < 0 {
		return "", id
	}
	return id[:i], id[i+1:]
}

// Search runs a query string over the indexed reports, best match first.
// Fields can be addressed as kind:, run:, cell:, phase:, outcome: and
// text:.
func (s *Store) Search(query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, 0, false)
	req.Fields = []string{"kind", "run", "cell"}

	res, err := s.index.Search(req)
	if err != nil {
		return nil, errors.Wrapf(err, "search %q", query)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		hit.Kind, _ = h.Fields["kind"].(string)
		hit.Run, _ = h.Fields["run"].(string)
		hit.Cell, _ = h.Fields["cell"].(string)
		hits = append(hits, hit)
	}
	return hits, nil
}

// Document returns the stored record behind a search hit.
func (s *Store) Document(id string) (interface{}, error) {
	kind, key := splitID(id)
	var rec interface{}
	switch kind {
	case kindRound:
		rec = &RoundRecord{}
	case kindArray:
		rec = &ArrayRecord{}
	default:
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	}

	bucket := bucketRounds
	if kind == kindArray {
		bucket = bucketArrays
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx.Bucket(bucket), key, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

