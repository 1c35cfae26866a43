package model

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/misp/codec"
)

// Object groups attributes that describe one thing according to an object
// template (for example a file with its hashes).
type Object struct {
	w objectJSON
}

type objectJSON struct {
	ID              ObjectID        `json:"id"`
	Name            string          `json:"name"`
	MetaCategory    string          `json:"meta-category"`
	Description     string          `json:"description"`
	TemplateUUID    string          `json:"template_uuid"`
	TemplateVersion codec.Uint64    `json:"template_version"`
	EventID         EventID         `json:"event_id"`
	UUID            uuid.UUID       `json:"uuid,omitzero"`
	Timestamp       codec.Timestamp `json:"timestamp,omitzero"`
	Distribution    Distribution    `json:"distribution"`
	SharingGroupID  codec.Uint64    `json:"sharing_group_id"`
	Comment         string          `json:"comment"`
	Deleted         bool            `json:"deleted"`
}

func (o Object) ID() ObjectID                { return o.w.ID }
func (o Object) Name() string                { return o.w.Name }
func (o Object) MetaCategory() string        { return o.w.MetaCategory }
func (o Object) Description() string         { return o.w.Description }
func (o Object) TemplateUUID() string        { return o.w.TemplateUUID }
func (o Object) TemplateVersion() uint64     { return uint64(o.w.TemplateVersion) }
func (o Object) EventID() EventID            { return o.w.EventID }
func (o Object) UUID() uuid.UUID             { return o.w.UUID }
func (o Object) Timestamp() time.Time        { return o.w.Timestamp.Time }
func (o Object) Distribution() Distribution  { return o.w.Distribution }
func (o Object) SharingGroupID() uint64      { return uint64(o.w.SharingGroupID) }
func (o Object) Comment() string             { return o.w.Comment }
func (o Object) Deleted() bool               { return o.w.Deleted }
func (o Object) Identifier() ObjectIdentifier { return FromGlobalID[ObjectID](o.w.UUID) }

func (o Object) MarshalJSON() ([]byte, error) { return json.Marshal(o.w) }

func (o *Object) UnmarshalJSON(data []byte) error {
	var w objectJSON
	if err := decodeRecord(data, &w, objectSchema); err != nil {
		return err
	}
	o.w = w
	return nil
}

// FullObject is an object as embedded in a single-event response, with its
// attributes.
type FullObject struct {
	Object
	x objectExtras
}

type objectExtras struct {
	FirstSeen       *codec.Timestamp `json:"first_seen"`
	LastSeen        *codec.Timestamp `json:"last_seen"`
	ObjectReference json.RawMessage  `json:"ObjectReference,omitempty"`
	Attribute       []FullAttribute  `json:"Attribute"`
}

type fullObjectJSON struct {
	objectJSON
	objectExtras
}

func (o FullObject) FirstSeen() (time.Time, bool) { return optionalTime(o.x.FirstSeen) }
func (o FullObject) LastSeen() (time.Time, bool)  { return optionalTime(o.x.LastSeen) }

// References returns the raw object references.
func (o FullObject) References() json.RawMessage { return o.x.ObjectReference }

// Attributes returns a copy of the object's attributes.
func (o FullObject) Attributes() []FullAttribute { return slices.Clone(o.x.Attribute) }

// Attribute returns the first attribute whose object relation is relation.
func (o FullObject) Attribute(relation string) (FullAttribute, bool) {
	for _, a := range o.x.Attribute {
		if r, ok := a.ObjectRelation(); ok && r == relation {
			return a, true
		}
	}
	return FullAttribute{}, false
}

func (o FullObject) MarshalJSON() ([]byte, error) {
	return json.Marshal(fullObjectJSON{o.w, o.x})
}

func (o *FullObject) UnmarshalJSON(data []byte) error {
	var w fullObjectJSON
	if err := decodeRecord(data, &w, fullObjectSchema); err != nil {
		return err
	}
	*o = FullObject{Object: Object{w: w.objectJSON}, x: w.objectExtras}
	return nil
}
