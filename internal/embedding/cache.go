package embedding

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/minio/highwayhash"
	"github.com/viant/sqlite-vec/vector"
	"go.etcd.io/bbolt"
)

const cacheBucketName = "embeddings"

// Cache is an Embedder that remembers vectors from another Embedder in a
// BoltDB file, keyed by model and text. Reference phrases are embedded once
// per model instead of once per process start.
type Cache struct {
	db     *bbolt.DB
	model  string
	next   Embedder
	logger *slog.Logger
}

// OpenCache opens (or creates) the cache file at path in front of next.
// model must identify the vectors next produces.
func OpenCache(path, model string, next Embedder, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &Cache{db: db, model: model, next: next, logger: logger}, nil
}

// EmbedDocuments serves cached vectors and embeds only the misses
func (c *Cache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)

	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cacheBucketName))
		for i, t := range texts {
			data := bucket.Get(c.key(t))
			if data == nil {
				missTexts = append(missTexts, t)
				missIdx = append(missIdx, i)
				continue
			}
			v, err := vector.DecodeEmbedding(data)
			if err != nil {
				// unreadable entry, embed again and overwrite
				missTexts = append(missTexts, t)
				missIdx = append(missIdx, i)
				continue
			}
			out[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading embedding cache: %w", err)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.next.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missTexts))
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cacheBucketName))
		for j, v := range vectors {
			out[missIdx[j]] = v
			data, err := vector.EncodeEmbedding(v)
			if err != nil {
				return fmt.Errorf("encoding embedding: %w", err)
			}
			if err := bucket.Put(c.key(missTexts[j]), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// the vectors are still good, the cache just stays cold
		c.logger.Warn("Failed to write embedding cache", "model", c.model, "error", err)
	}
	c.logger.Debug("embedding cache", "model", c.model, "hits", len(texts)-len(missTexts), "misses", len(missTexts))

	return out, nil
}

func (c *Cache) key(text string) []byte {
	sum := highwayhash.Sum64([]byte(c.model+"\x00"+text), hashKey)
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, sum)
	return key
}

// Close closes the cache file
func (c *Cache) Close() error {
	return c.db.Close()
}
