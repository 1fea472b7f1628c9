package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/clinictrack/emgcore/internal/emgerrors"
)

// legacyPayload is the flat storage-event shape (§6.1 "Legacy shape").
type legacyPayload struct {
	EventType   string            `json:"eventType"`
	Bucket      string            `json:"bucket"`
	ObjectName  string            `json:"objectName"`
	ObjectSize  int64             `json:"objectSize"`
	ContentType string            `json:"contentType"`
	Timestamp   string            `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// triggerRecord is the row snapshot embedded in the database-trigger shape.
type triggerRecord struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	BucketID  string            `json:"bucket_id"`
	Metadata  map[string]any    `json:"metadata"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// triggerPayload is the database-trigger shape (§6.1 "Database-trigger
// shape"): a Postgres storage.objects row wrapped by a generic trigger
// envelope.
type triggerPayload struct {
	Type      string         `json:"type"`
	Table     string         `json:"table"`
	Schema    string         `json:"schema"`
	Record    *triggerRecord `json:"record"`
	OldRecord *triggerRecord `json:"old_record,omitempty"`
}

// triggerEventTypeMap maps the trigger "type" field to the canonical event
// type the validation gate expects.
var triggerEventTypeMap = map[string]string{
	"INSERT": "INSERT_storage.objects",
}

// NormalizeWebhookPayload accepts either tagged-variant shape described in
// §6.1 and reduces it to a NormalizedEvent. It distinguishes the two shapes
// by the presence of a top-level "record" object, which only the
// database-trigger shape carries.
func NormalizeWebhookPayload(body []byte) (NormalizedEvent, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return NormalizedEvent{}, emgerrors.Validation(stage, "malformed webhook payload: "+err.Error())
	}

	if _, isTrigger := probe["record"]; isTrigger {
		return normalizeTriggerPayload(body)
	}
	return normalizeLegacyPayload(body)
}

func normalizeLegacyPayload(body []byte) (NormalizedEvent, error) {
	var p legacyPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return NormalizedEvent{}, emgerrors.Validation(stage, "malformed legacy webhook payload: "+err.Error())
	}
	if p.EventType == "" || p.Bucket == "" || p.ObjectName == "" {
		return NormalizedEvent{}, emgerrors.Validation(stage, "legacy webhook payload missing required fields")
	}
	return NormalizedEvent{
		EventType:   p.EventType,
		Bucket:      p.Bucket,
		ObjectName:  p.ObjectName,
		ObjectSize:  p.ObjectSize,
		ContentType: p.ContentType,
		Timestamp:   p.Timestamp,
	}, nil
}

func normalizeTriggerPayload(body []byte) (NormalizedEvent, error) {
	var p triggerPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return NormalizedEvent{}, emgerrors.Validation(stage, "malformed database-trigger webhook payload: "+err.Error())
	}
	if p.Record == nil || p.Record.Name == "" || p.Record.BucketID == "" {
		return NormalizedEvent{}, emgerrors.Validation(stage, "database-trigger webhook payload missing record fields")
	}

	eventType, ok := triggerEventTypeMap[p.Type]
	if !ok {
		eventType = p.Type // unrecognized types fall through to the event-type gate for rejection
	}

	size, contentType := extractObjectSizeAndType(p.Record.Metadata)

	return NormalizedEvent{
		EventType:   eventType,
		Bucket:      p.Record.BucketID,
		ObjectName:  p.Record.Name,
		ObjectSize:  size,
		ContentType: contentType,
		Timestamp:   p.Record.CreatedAt,
	}, nil
}

// extractObjectSizeAndType pulls the object size and content type out of the
// storage.objects metadata blob, whose shape is not itself part of the
// contract (storage backends vary in what they put there).
func extractObjectSizeAndType(metadata map[string]any) (int64, string) {
	var size int64
	var contentType string
	if metadata == nil {
		return size, contentType
	}
	if v, ok := metadata["size"]; ok {
		size = toInt64(v)
	}
	if v, ok := metadata["mimetype"]; ok {
		if s, ok := v.(string); ok {
			contentType = s
		}
	}
	return size, contentType
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		var i int64
		_, _ = fmt.Sscanf(n, "%d", &i)
		return i
	default:
		return 0
	}
}
