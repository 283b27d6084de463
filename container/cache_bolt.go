package container

import (
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// BoltCache persists per-dependency tag lists and manifest blobs across
// resolver invocations: one bucket per concern, keyed by the dependency's
// cache key (clone URL), holding the container-provider data that's
// expensive to re-fetch.
type BoltCache struct {
	db *bolt.DB
}

var (
	tagsBucket     = []byte("tags")
	manifestBucket = []byte("manifests")
)

// OpenBoltCache opens (creating if absent) a bolt database at path.
func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt cache %q", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(tagsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(manifestBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing bolt cache buckets")
	}
	return &BoltCache{db: db}, nil
}

// Close releases the underlying bolt database handle.
func (c *BoltCache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// getTags looks up a previously cached tag list for key (the dependency's
// CacheKey()). A nil receiver always misses, so callers can pass a nil
// *BoltCache to opt out of persistence entirely.
func (c *BoltCache) getTags(key string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	var out []string
	_ = c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(tagsBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		out = strings.Split(string(v), "\x00")
		return nil
	})
	if out == nil {
		return nil, false
	}
	return out, true
}

func (c *BoltCache) putTags(key string, tags []string) {
	if c == nil {
		return
	}
	_ = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tagsBucket).Put([]byte(key), []byte(strings.Join(tags, "\x00")))
	})
}

func manifestKey(cacheKey, sha string) []byte {
	return []byte(cacheKey + "\x00" + sha)
}

func (c *BoltCache) getManifest(cacheKey, sha string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	var out []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(manifestBucket).Get(manifestKey(cacheKey, sha))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil
}

func (c *BoltCache) putManifest(cacheKey, sha string, blob []byte) {
	if c == nil {
		return
	}
	_ = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(manifestBucket).Put(manifestKey(cacheKey, sha), blob)
	})
}
