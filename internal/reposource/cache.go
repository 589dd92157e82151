package reposource

import (
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var blobBucket = []byte("blobs")

// BlobCache memoizes blob bytes on disk, keyed by blob identity. Blob IDs
// are content-addressed so entries never go stale.
type BlobCache struct {
	db *bolt.DB
}

// OpenBlobCache opens (or creates) a cache database under dir.
func OpenBlobCache(dir string) (*BlobCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, "blobs.db"), 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BlobCache{db: db}, nil
}

// Get returns the cached bytes for blobID, if present.
func (c *BlobCache) Get(blobID string) ([]byte, bool) {
	var data []byte
	c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blobBucket).Get([]byte(blobID))
		if v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	return data, data != nil
}

// Put stores blob bytes under blobID.
func (c *BlobCache) Put(blobID string, data []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobBucket).Put([]byte(blobID), data)
	})
}

// Close releases the underlying database.
func (c *BlobCache) Close() error {
	return c.db.Close()
}
