package amqp

import (
	"encoding/json"
	"time"
)

// Reasons a sync request is published.
const (
	ReasonLoanAdded    = "loan_added"
	ReasonManual       = "manual"
	ReasonConnectivity = "connectivity"
)

// SyncRequestMessage asks the worker to run a sync attempt. It carries no
// entity data; the worker drains the outbox from its own store.
type SyncRequestMessage struct {
	Reason    string    `json:"reason"`
	LoanID    string    `json:"loanId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncRequestMessage(reason, loanID string) *SyncRequestMessage {
	return &SyncRequestMessage{
		Reason:    reason,
		LoanID:    loanID,
		Timestamp: time.Now(),
	}
}

func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
