package queue

import (
	"encoding/json"
	"fmt"

	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/uuid"
)

// Kind is the tag of an outbox payload.
type Kind struct {
	Entity models.EntityType
	Action models.Action
}

// String renders the kind as "entity/action".
func (k Kind) String() string {
	return string(k.Entity) + "/" + string(k.Action)
}

// Payload is the typed body of an outbox record. Each concrete type carries
// a snapshot sufficient to replay the mutation remotely.
type Payload interface {
	Kind() Kind
	EntityID() string
}

// DowntimeCreate replays a newly started downtime event.
type DowntimeCreate struct {
	Event models.DowntimeEvent `json:"event"`
}

// DowntimeUpdate replays a change to a downtime event.
type DowntimeUpdate struct {
	Event   models.DowntimeEvent `json:"event"`
	Changed []string             `json:"changed"`
}

// MaintenanceUpdate replays a change to a maintenance item.
type MaintenanceUpdate struct {
	Item    models.MaintenanceItem `json:"item"`
	Changed []string               `json:"changed"`
}

// AlertCreate replays a newly raised alert.
type AlertCreate struct {
	Alert models.Alert `json:"alert"`
}

// AlertUpdate replays an alert status change.
type AlertUpdate struct {
	Alert   models.Alert `json:"alert"`
	Changed []string     `json:"changed"`
}

// EntityDelete records the removal of an entity. No repository produces it
// today; the tag exists so stored records of that action still decode.
type EntityDelete struct {
	Entity models.EntityType `json:"entity_type"`
	ID     string            `json:"id"`
}

// Opaque holds a payload whose (entity, action) pair has no dedicated shape.
type Opaque struct {
	Tag Kind            `json:"-"`
	ID  string          `json:"-"`
	Raw json.RawMessage `json:"-"`
}

func (DowntimeCreate) Kind() Kind    { return Kind{models.EntityDowntime, models.ActionCreate} }
func (DowntimeUpdate) Kind() Kind    { return Kind{models.EntityDowntime, models.ActionUpdate} }
func (MaintenanceUpdate) Kind() Kind { return Kind{models.EntityMaintenance, models.ActionUpdate} }
func (AlertCreate) Kind() Kind       { return Kind{models.EntityAlert, models.ActionCreate} }
func (AlertUpdate) Kind() Kind       { return Kind{models.EntityAlert, models.ActionUpdate} }
func (p EntityDelete) Kind() Kind    { return Kind{p.Entity, models.ActionDelete} }
func (p Opaque) Kind() Kind          { return p.Tag }

func (p DowntimeCreate) EntityID() string    { return p.Event.ID }
func (p DowntimeUpdate) EntityID() string    { return p.Event.ID }
func (p MaintenanceUpdate) EntityID() string { return p.Item.ID }
func (p AlertCreate) EntityID() string       { return p.Alert.ID }
func (p AlertUpdate) EntityID() string       { return p.Alert.ID }
func (p EntityDelete) EntityID() string      { return p.ID }
func (p Opaque) EntityID() string            { return p.ID }

// Encode serialises a payload for storage.
func Encode(p Payload) ([]byte, error) {
	if o, ok := p.(Opaque); ok {
		return o.Raw, nil
	}
	return json.Marshal(p)
}

// Decode restores the typed payload of a stored record.
func Decode(item *models.SyncQueueItem) (Payload, error) {
	kind := Kind{Entity: item.EntityType, Action: item.Action}

	var p Payload
	var err error
	switch kind {
	case Kind{models.EntityDowntime, models.ActionCreate}:
		var v DowntimeCreate
		err = json.Unmarshal(item.Payload, &v)
		p = v
	case Kind{models.EntityDowntime, models.ActionUpdate}:
		var v DowntimeUpdate
		err = json.Unmarshal(item.Payload, &v)
		p = v
	case Kind{models.EntityMaintenance, models.ActionUpdate}:
		var v MaintenanceUpdate
		err = json.Unmarshal(item.Payload, &v)
		p = v
	case Kind{models.EntityAlert, models.ActionCreate}:
		var v AlertCreate
		err = json.Unmarshal(item.Payload, &v)
		p = v
	case Kind{models.EntityAlert, models.ActionUpdate}:
		var v AlertUpdate
		err = json.Unmarshal(item.Payload, &v)
		p = v
	default:
		if kind.Action == models.ActionDelete {
			return EntityDelete{Entity: item.EntityType, ID: item.EntityID}, nil
		}
		return Opaque{Tag: kind, ID: item.EntityID, Raw: item.Payload}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload of %s: %w", kind, item.ID, err)
	}
	if p.EntityID() != item.EntityID {
		return nil, fmt.Errorf("decode %s payload of %s: entity id %q does not match record %q",
			kind, item.ID, p.EntityID(), item.EntityID)
	}
	if key := uniqueID(p); key != "" {
		if _, err := uuid.NewFromString(key); err != nil {
			return nil, fmt.Errorf("decode %s payload of %s: unique_id: %w", kind, item.ID, err)
		}
	}
	return p, nil
}

// uniqueID returns the idempotency key carried by downtime payloads.
func uniqueID(p Payload) string {
	switch v := p.(type) {
	case DowntimeCreate:
		return v.Event.UniqueID
	case DowntimeUpdate:
		return v.Event.UniqueID
	}
	return ""
}
