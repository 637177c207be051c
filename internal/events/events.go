// Package events decodes the CloudEvents that trigger the pipeline stages.
package events

import (
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/Lllllllleong/documentindexflow/internal/models"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// gcsObjectData is the JSON payload of a Cloud Storage object event.
type gcsObjectData struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	Size        string `json:"size"`
	ContentType string `json:"contentType"`
}

// ObjectNotification decodes a storage object-finalized event.
func ObjectNotification(e cloudevents.Event) (models.ObjectNotification, error) {
	var data gcsObjectData
	if err := json.Unmarshal(e.Data(), &data); err != nil {
		return models.ObjectNotification{}, fmt.Errorf("json.Unmarshal: %w", err)
	}
	n := models.ObjectNotification{
		EventType: e.Type(),
		Bucket:    data.Bucket,
		Key:       data.Name,
	}
	if data.Size != "" {
		size, err := strconv.ParseInt(data.Size, 10, 64)
		if err != nil {
			return models.ObjectNotification{}, fmt.Errorf("invalid object size %q: %w", data.Size, err)
		}
		n.Size = size
	}
	return n, nil
}

// firestoreDocument is a Firestore document in the JSON encoding of DocumentEventData.
type firestoreDocument struct {
	Name   string                    `json:"name"`
	Fields map[string]map[string]any `json:"fields"`
}

type documentEventData struct {
	OldValue   *firestoreDocument `json:"oldValue"`
	Value      *firestoreDocument `json:"value"`
	UpdateMask *struct {
		FieldPaths []string `json:"fieldPaths"`
	} `json:"updateMask"`
}

// StatusChange decodes a Firestore document-written event published with the JSON content
// type. Protobuf-encoded events are rejected; the trigger must be created with
// --event-data-content-type=application/json.
func StatusChange(e cloudevents.Event) (models.StatusChange, error) {
	if ct := e.DataContentType(); strings.Contains(ct, "protobuf") {
		return models.StatusChange{}, fmt.Errorf("unsupported event data content type %q", ct)
	}

	var data documentEventData
	if err := json.Unmarshal(e.Data(), &data); err != nil {
		return models.StatusChange{}, fmt.Errorf("json.Unmarshal: %w", err)
	}

	old, cur := present(data.OldValue), present(data.Value)
	change := models.StatusChange{}
	switch {
	case old && cur:
		change.Operation = models.OperationModify
	case cur:
		change.Operation = models.OperationInsert
	case old:
		change.Operation = models.OperationRemove
	default:
		return models.StatusChange{}, fmt.Errorf("event carries neither old nor new document")
	}

	if old {
		change.OldStatus = models.Status(stringField(data.OldValue, "status"))
		change.DocumentID = path.Base(data.OldValue.Name)
	}
	if cur {
		change.NewStatus = models.Status(stringField(data.Value, "status"))
		change.DocumentID = path.Base(data.Value.Name)
	}
	if change.DocumentID == "" || change.DocumentID == "." {
		change.DocumentID = path.Base(e.Subject())
	}
	return change, nil
}

func present(d *firestoreDocument) bool {
	return d != nil && (d.Name != "" || len(d.Fields) > 0)
}

func stringField(d *firestoreDocument, name string) string {
	s, _ := d.Fields[name]["stringValue"].(string)
	return s
}
