package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/misp/codec"
)

// Attribute is a single indicator or observable as listed in an event.
type Attribute struct {
	w attributeJSON
}

type attributeJSON struct {
	ID                 AttributeID     `json:"id"`
	EventID            EventID         `json:"event_id"`
	ObjectID           ObjectID        `json:"object_id"`
	ObjectRelation     *string         `json:"object_relation"`
	Category           string          `json:"category"`
	Type               string          `json:"type"`
	Value              string          `json:"value"`
	ToIDs              bool            `json:"to_ids"`
	UUID               uuid.UUID       `json:"uuid,omitzero"`
	Timestamp          codec.Timestamp `json:"timestamp,omitzero"`
	Distribution       Distribution    `json:"distribution"`
	SharingGroupID     codec.Uint64    `json:"sharing_group_id"`
	Comment            string          `json:"comment"`
	Deleted            bool            `json:"deleted"`
	DisableCorrelation bool            `json:"disable_correlation"`
}

func (a Attribute) ID() AttributeID            { return a.w.ID }
func (a Attribute) EventID() EventID           { return a.w.EventID }
func (a Attribute) ObjectID() ObjectID         { return a.w.ObjectID }
func (a Attribute) Category() string           { return a.w.Category }
func (a Attribute) Type() string               { return a.w.Type }
func (a Attribute) Value() string              { return a.w.Value }
func (a Attribute) ToIDs() bool                { return a.w.ToIDs }
func (a Attribute) UUID() uuid.UUID            { return a.w.UUID }
func (a Attribute) Timestamp() time.Time       { return a.w.Timestamp.Time }
func (a Attribute) Distribution() Distribution { return a.w.Distribution }
func (a Attribute) SharingGroupID() uint64     { return uint64(a.w.SharingGroupID) }
func (a Attribute) Comment() string            { return a.w.Comment }
func (a Attribute) Deleted() bool              { return a.w.Deleted }
func (a Attribute) DisableCorrelation() bool   { return a.w.DisableCorrelation }

// ObjectRelation returns the attribute's role inside its object, if any.
func (a Attribute) ObjectRelation() (string, bool) {
	if a.w.ObjectRelation == nil {
		return "", false
	}
	return *a.w.ObjectRelation, true
}

// Identifier returns the global identifier of the attribute.
func (a Attribute) Identifier() AttributeIdentifier {
	return FromGlobalID[AttributeID](a.w.UUID)
}

func (a Attribute) MarshalJSON() ([]byte, error) { return json.Marshal(a.w) }

func (a *Attribute) UnmarshalJSON(data []byte) error {
	var w attributeJSON
	if err := decodeRecord(data, &w, attributeSchema); err != nil {
		return err
	}
	a.w = w
	return nil
}

// FullAttribute is an attribute as embedded in a single-event response.
type FullAttribute struct {
	Attribute
	x attributeExtras
}

type attributeExtras struct {
	Galaxy          json.RawMessage  `json:"Galaxy,omitempty"`
	ShadowAttribute json.RawMessage  `json:"ShadowAttribute,omitempty"`
	FirstSeen       *codec.Timestamp `json:"first_seen"`
	LastSeen        *codec.Timestamp `json:"last_seen"`
}

type fullAttributeJSON struct {
	attributeJSON
	attributeExtras
}

func (a FullAttribute) FirstSeen() (time.Time, bool) { return optionalTime(a.x.FirstSeen) }
func (a FullAttribute) LastSeen() (time.Time, bool)  { return optionalTime(a.x.LastSeen) }

// Galaxies returns the raw galaxy clusters attached to the attribute.
func (a FullAttribute) Galaxies() json.RawMessage { return a.x.Galaxy }

// ShadowAttributes returns the raw proposals attached to the attribute.
func (a FullAttribute) ShadowAttributes() json.RawMessage { return a.x.ShadowAttribute }

func (a FullAttribute) MarshalJSON() ([]byte, error) {
	return json.Marshal(fullAttributeJSON{a.w, a.x})
}

func (a *FullAttribute) UnmarshalJSON(data []byte) error {
	var w fullAttributeJSON
	if err := decodeRecord(data, &w, fullAttributeSchema); err != nil {
		return err
	}
	*a = FullAttribute{Attribute: Attribute{w: w.attributeJSON}, x: w.attributeExtras}
	return nil
}
