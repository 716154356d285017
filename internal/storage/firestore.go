package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreCollection = "cph_kv"

// Firestore is a KV stored as one document per key. Document IDs are the
// SHA-256 of the key because keys may contain '/'.
type Firestore struct {
	client *firestore.Client
}

type kvDocument struct {
	Key       string    `firestore:"key"`
	Value     []byte    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func OpenFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore backend requires GOOGLE_CLOUD_PROJECT")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (c *Firestore) Close() error {
	return c.client.Close()
}

func documentID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (c *Firestore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	doc, err := c.client.Collection(firestoreCollection).Doc(documentID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if !doc.Exists() {
		return nil, false, nil
	}

	var d kvDocument
	if err := doc.DataTo(&d); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return d.Value, true, nil
}

func (c *Firestore) Set(ctx context.Context, key string, value []byte) error {
	_, err := c.client.Collection(firestoreCollection).Doc(documentID(key)).Set(ctx, kvDocument{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// prefixQuery matches documents whose key starts with prefix.
func (c *Firestore) prefixQuery(prefix string) firestore.Query {
	q := c.client.Collection(firestoreCollection).Query
	if prefix == "" {
		return q
	}
	return q.Where("key", ">=", prefix).Where("key", "<", prefix+"\uf8ff")
}

// DeletePrefix removes matching documents through a BulkWriter.
func (c *Firestore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	iter := c.prefixQuery(prefix).Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	defer bulkWriter.End()

	deleted := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to iterate prefix %s: %w", prefix, err)
		}

		if _, err := bulkWriter.Delete(doc.Ref); err != nil {
			slog.Warn("Failed to queue delete", "doc", doc.Ref.ID, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		bulkWriter.Flush()
		slog.Info("Deleted cached entries", "prefix", prefix, "count", deleted)
	}
	return deleted, nil
}

// Count uses a server-side count aggregation.
func (c *Firestore) Count(ctx context.Context, prefix string) (int, error) {
	q := c.prefixQuery(prefix)
	snapshot, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count prefix %s: %w", prefix, err)
	}
	value, ok := snapshot["all"]
	if !ok {
		return 0, fmt.Errorf("count aggregation result was invalid: 'all' key missing")
	}
	return aggregateCount(value)
}

func aggregateCount(value interface{}) (int, error) {
	switch v := value.(type) {
	case int64:
		return int(v), nil
	case *firestorepb.Value:
		return int(v.GetIntegerValue()), nil
	default:
		return 0, fmt.Errorf("count aggregation result has unexpected type %T", value)
	}
}
