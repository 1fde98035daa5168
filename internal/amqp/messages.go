package amqp

import (
	"encoding/json"
	"time"

	"casetrack/internal/derive"
)

// PayoutDerivedMessage announces a freshly derived payout. It carries the
// identifiers and the net figure; consumers fetch anything else from the
// database.
type PayoutDerivedMessage struct {
	PayoutID  int64     `json:"payout_id"`
	EventID   string    `json:"event_id"`
	CaseType  string    `json:"case_type"`
	CaseID    int64     `json:"case_id"`
	Month     string    `json:"month"`
	Net       string    `json:"net"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPayoutDerivedMessage(e derive.Event) *PayoutDerivedMessage {
	return &PayoutDerivedMessage{
		PayoutID:  e.PayoutID,
		EventID:   e.EventID.String(),
		CaseType:  string(e.CaseType),
		CaseID:    e.CaseID,
		Month:     string(e.Month),
		Net:       e.Net.String(),
		Timestamp: e.Timestamp,
	}
}

func (m *PayoutDerivedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PayoutDerivedMessageFromJSON(data []byte) (*PayoutDerivedMessage, error) {
	var msg PayoutDerivedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
