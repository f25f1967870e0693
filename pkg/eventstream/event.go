package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentIndexed is emitted after a document is added to the store.
	EventTypeDocumentIndexed = "ocrfast.document.indexed"
)

// DocumentIndexedEvent is a transport-neutral event payload for a stored document.
type DocumentIndexedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	Document      DocumentRecord `json:"document"`
}

// EventSource identifies the component that stored the document.
type EventSource struct {
	Component string `json:"component"`
	Engine    string `json:"engine,omitempty"`
}

// DocumentRecord is the subset of store metadata carried on the event.
type DocumentRecord struct {
	ID              string    `json:"id"`
	Position        int       `json:"position"`
	FilePath        string    `json:"file_path"`
	DocumentType    string    `json:"document_type"`
	ConfidenceScore float64   `json:"confidence_score"`
	ProcessedDate   time.Time `json:"processed_date"`
}

// NewDocumentIndexedEvent stamps a new event with a fresh id and the current time.
func NewDocumentIndexedEvent(source EventSource, doc DocumentRecord) *DocumentIndexedEvent {
	return &DocumentIndexedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeDocumentIndexed,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Document:      doc,
	}
}
