package core

import "encoding/json"

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

const (
	CollectionBudgets Collection = "budgets"
	CollectionLoans   Collection = "loans"
)

type (
	// MutationKind is the operation a queued mutation represents.
	MutationKind string

	// Collection names a synced entity collection.
	Collection string

	// PendingMutation is one outbox entry: a local write waiting to be
	// pushed to the remote store. Payload carries the entity's full state
	// at enqueue time (for deletes, the pre-deletion snapshot).
	PendingMutation struct {
		ID         int64           `json:"id"`
		Collection Collection      `json:"collection"`
		Kind       MutationKind    `json:"kind"`
		Payload    json.RawMessage `json:"payload"`
		EnqueuedAt int64           `json:"enqueuedAt"` // epoch millis
	}

	// Invoice is the metadata written to the remote store after a loan
	// statement upload.
	Invoice struct {
		ID        string `json:"id"`
		LoanID    string `json:"loanId"`
		FileURL   string `json:"fileUrl"`
		CreatedAt int64  `json:"createdAt"` // epoch millis
	}
)

func (k MutationKind) Valid() bool {
	switch k {
	case MutationCreate, MutationUpdate, MutationDelete:
		return true
	}
	return false
}

func (c Collection) Valid() bool {
	return c == CollectionBudgets || c == CollectionLoans
}

// EntityID extracts the id field from the mutation payload.
func (m PendingMutation) EntityID() (string, error) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(m.Payload, &probe); err != nil {
		return "", err
	}
	return probe.ID, nil
}
