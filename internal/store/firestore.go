package store

import (
	"context"
	"encoding/base64"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is the production Store backed by Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore initializes a Firestore client through the Firebase app.
// Credentials come from a service-account file or, for cloud deployments
// (Railway, Fly.io, Render), a base64-encoded copy of the same JSON.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile, credentialsBase64 string) (*FirestoreStore, error) {
	var opt option.ClientOption
	if credentialsBase64 != "" {
		credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(credentialsJSON)
	} else {
		opt = option.WithCredentialsFile(credentialsFile)
	}

	var config *firebase.Config
	if projectID != "" {
		config = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, config, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firestore client: %w", err)
	}

	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (map[string]interface{}, bool, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading %s/%s: %w", collection, id, err)
	}
	return snap.Data(), true, nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error {
	ref := s.client.Collection(collection).Doc(id)
	var err error
	if merge {
		_, err = ref.Set(ctx, data, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, data)
	}
	if err != nil {
		return fmt.Errorf("error writing %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	// Firestore deletes of missing documents succeed, matching the adapter
	// contract.
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("error deleting %s/%s: %w", collection, id, err)
	}
	return nil
}

type fsTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
	wrote  bool
	bad    error
}

func (t *fsTx) Get(collection, id string) (map[string]interface{}, bool, error) {
	if t.wrote {
		t.bad = ErrReadAfterWrite
		return nil, false, ErrReadAfterWrite
	}
	snap, err := t.tx.Get(t.client.Collection(collection).Doc(id))
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading %s/%s in transaction: %w", collection, id, err)
	}
	return snap.Data(), true, nil
}

func (t *fsTx) Set(collection, id string, data map[string]interface{}, merge bool) {
	t.wrote = true
	ref := t.client.Collection(collection).Doc(id)
	if merge {
		t.tx.Set(ref, data, firestore.MergeAll)
	} else {
		t.tx.Set(ref, data)
	}
}

func (t *fsTx) Delete(collection, id string) {
	t.wrote = true
	t.tx.Delete(t.client.Collection(collection).Doc(id))
}

func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		wrapped := &fsTx{client: s.client, tx: tx}
		if err := fn(wrapped); err != nil {
			return err
		}
		return wrapped.bad
	})
	// The client retries contended transactions internally; Aborted means
	// the budget ran out.
	if status.Code(err) == codes.Aborted {
		return ErrConflict
	}
	return err
}

type fsBatch struct {
	client *firestore.Client
	batch  *firestore.WriteBatch
}

func (s *FirestoreStore) Batch() Batch {
	return &fsBatch{client: s.client, batch: s.client.Batch()}
}

func (b *fsBatch) Set(collection, id string, data map[string]interface{}, merge bool) {
	ref := b.client.Collection(collection).Doc(id)
	if merge {
		b.batch.Set(ref, data, firestore.MergeAll)
	} else {
		b.batch.Set(ref, data)
	}
}

func (b *fsBatch) Delete(collection, id string) {
	b.batch.Delete(b.client.Collection(collection).Doc(id))
}

func (b *fsBatch) Commit(ctx context.Context) error {
	if _, err := b.batch.Commit(ctx); err != nil {
		return fmt.Errorf("error committing batch: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Where(ctx context.Context, collection, field, op string, value interface{}) ([]Doc, error) {
	iter := s.client.Collection(collection).Where(field, op, value).Documents(ctx)
	defer iter.Stop()
	return drain(iter)
}

func (s *FirestoreStore) All(ctx context.Context, collection string) ([]Doc, error) {
	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()
	return drain(iter)
}

func drain(iter *firestore.DocumentIterator) ([]Doc, error) {
	var out []Doc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating query: %w", err)
		}
		out = append(out, Doc{ID: snap.Ref.ID, Data: snap.Data()})
	}
}
