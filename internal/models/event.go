package models

import "encoding/json"

// Data is the opaque payload attached to a domain event.
type Data map[string]interface{}

func (d Data) String() string {
	data, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(data)
}

// Clone returns a shallow copy. Each delivery job owns its data map, so a
// hook mutating one delivery's payload cannot race another's serialization.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	clone := make(Data, len(d))
	for k, v := range d {
		clone[k] = v
	}
	return clone
}

// Event names form a closed set; subscribers depend on these exact strings.
const (
	EventContentCreated     = "content.created"
	EventContentUpdated     = "content.updated"
	EventContentDeleted     = "content.deleted"
	EventContentPublished   = "content.published"
	EventContentUnpublished = "content.unpublished"
	EventBlueprintCreated   = "blueprint.created"
	EventBlueprintUpdated   = "blueprint.updated"
	EventBlueprintDeleted   = "blueprint.deleted"
	EventMediaUploaded      = "media.uploaded"
	EventMediaDeleted       = "media.deleted"
)

// EventNames lists every dispatchable event.
func EventNames() []string {
	return []string{
		EventContentCreated,
		EventContentUpdated,
		EventContentDeleted,
		EventContentPublished,
		EventContentUnpublished,
		EventBlueprintCreated,
		EventBlueprintUpdated,
		EventBlueprintDeleted,
		EventMediaUploaded,
		EventMediaDeleted,
	}
}

func IsValidEvent(name string) bool {
	for _, e := range EventNames() {
		if e == name {
			return true
		}
	}
	return false
}
