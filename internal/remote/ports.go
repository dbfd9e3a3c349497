// Package remote defines the port to the remote document store the sync
// engine pushes to and pulls from. Adapters live in subpackages.
package remote

import (
	"context"
	"encoding/json"
)

// Doc is one remote document: the entity id and its full JSON state.
type Doc struct {
	ID   string
	Data json.RawMessage
}

// Write is one element of an atomic batch: an upsert of Data under
// Collection/ID, or a deletion when Delete is set.
type Write struct {
	Collection string
	ID         string
	Data       json.RawMessage
	Delete     bool
}

// DocumentStore is the outbound port to the remote store. Commit applies a
// batch of writes atomically: either every write lands or none do. ListAll
// fetches the full contents of a collection.
type DocumentStore interface {
	Commit(ctx context.Context, writes []Write) error
	ListAll(ctx context.Context, collection string) ([]Doc, error)
}
