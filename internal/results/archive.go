package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/GoSim-25-26J-441/egosim/pkg/models"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// ErrEmptyKey is returned when a bundle is stored without a bucket or key
var ErrEmptyKey = errors.New("empty archive key")

// Archive stores result bundles in a bbolt database, one bucket per
// experiment name. Values are msgpack encoded.
type Archive struct {
	db *bbolt.DB
}

// OpenArchive opens or creates the archive at path
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive dir %s: %w", dir, err)
		}
	}
	db, err := bbolt.Open(path, 0o666, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	return &Archive{db: db}, nil
}

// Close closes the underlying database
func (a *Archive) Close() error {
	return a.db.Close()
}

// Put stores b under bucket/key, replacing any previous value
func (a *Archive) Put(bucket, key string, b *models.ResultBundle) error {
	if bucket == "" || key == "" {
		return ErrEmptyKey
	}
	data, err := Encode(FormatMsgpack, b)
	if err != nil {
		return err
	}
	return a.db.Update(func(tx *bbolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return bk.Put([]byte(key), data)
	})
}

// Write stores b in the bucket named after its experiment under a fresh
// <model>_results_<n> key
func (a *Archive) Write(ctx context.Context, b *models.ResultBundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.Name == "" {
		return ErrEmptyKey
	}
	data, err := Encode(FormatMsgpack, b)
	if err != nil {
		return err
	}
	return a.db.Update(func(tx *bbolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists([]byte(b.Name))
		if err != nil {
			return err
		}
		n := utils.TimestampSuffix()
		for attempt := 0; attempt < maxNameAttempts; attempt++ {
			key := []byte(fmt.Sprintf("%s_results_%d", b.Model, n))
			if bk.Get(key) == nil {
				return bk.Put(key, data)
			}
			n++
		}
		return fmt.Errorf("no free archive key for model %s in %s", b.Model, b.Name)
	})
}

// Get returns the bundle stored under bucket/key
func (a *Archive) Get(bucket, key string) (*models.ResultBundle, bool, error) {
	var data []byte
	err := a.db.View(func(tx *bbolt.Tx) error {
		bk := tx.Bucket([]byte(bucket))
		if bk == nil {
			return nil
		}
		if v := bk.Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, false, err
	}
	b, err := Decode(FormatMsgpack, data)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// List returns every bundle of an experiment in key order
func (a *Archive) List(bucket string) ([]*models.ResultBundle, error) {
	var result []*models.ResultBundle
	err := a.db.View(func(tx *bbolt.Tx) error {
		bk := tx.Bucket([]byte(bucket))
		if bk == nil {
			return nil
		}
		result = make([]*models.ResultBundle, 0, bk.Stats().KeyN)
		return bk.ForEach(func(k, v []byte) error {
			b, err := Decode(FormatMsgpack, v)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", bucket, k, err)
			}
			result = append(result, b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Experiments returns the archived experiment names, sorted
func (a *Archive) Experiments() ([]string, error) {
	var names []string
	err := a.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	sort.Strings(names)
	return names, err
}
