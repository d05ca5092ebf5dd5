// Package realtime keeps per-organization mirrors of table rows in sync with
// a change feed.
package realtime

import "encoding/json"

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

const (
	TableKeywords     = "keywords"
	TableNegotiations = "negotiations"
	TableEvidences    = "evidences"
)

// Event is one row change. Row carries the changed fields for updates and
// may be empty for deletes.
type Event struct {
	Type           EventType       `json:"type"`
	Table          string          `json:"table"`
	OrganizationID string          `json:"organizationId"`
	ID             string          `json:"id"`
	Row            json.RawMessage `json:"row,omitempty"`
}

// NewEvent encodes row as the event payload.
func NewEvent(eventType EventType, table, organizationID, id string, row any) (Event, error) {
	ev := Event{Type: eventType, Table: table, OrganizationID: organizationID, ID: id}
	if row != nil {
		raw, err := json.Marshal(row)
		if err != nil {
			return Event{}, err
		}
		ev.Row = raw
	}
	return ev, nil
}
