package model

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/misp/codec"
)

// Event is an event as it appears in listings: only the fields the server
// always reports, without nested attributes or objects.
type Event struct {
	w eventJSON
}

type eventJSON struct {
	ID                 EventID         `json:"id"`
	OrgID              OrganizationID  `json:"org_id"`
	Date               codec.Date      `json:"date,omitzero"`
	Info               string          `json:"info"`
	UUID               uuid.UUID       `json:"uuid,omitzero"`
	Published          bool            `json:"published"`
	Analysis           Analysis        `json:"analysis"`
	AttributeCount     codec.Uint64    `json:"attribute_count"`
	OrgcID             OrganizationID  `json:"orgc_id"`
	Timestamp          codec.Timestamp `json:"timestamp,omitzero"`
	Distribution       Distribution    `json:"distribution"`
	SharingGroupID     codec.Uint64    `json:"sharing_group_id"`
	ProposalEmailLock  bool            `json:"proposal_email_lock"`
	Locked             bool            `json:"locked"`
	ThreatLevel        ThreatLevel     `json:"threat_level_id"`
	PublishTimestamp   codec.Timestamp `json:"publish_timestamp,omitzero"`
	DisableCorrelation bool            `json:"disable_correlation"`
	ExtendsUUID        string          `json:"extends_uuid"`
}

func (e Event) ID() EventID { return e.w.ID }

// OrganizationID returns the organization currently owning the event.
func (e Event) OrganizationID() OrganizationID { return e.w.OrgID }

// CreatorOrganizationID returns the organization that created the event.
func (e Event) CreatorOrganizationID() OrganizationID { return e.w.OrgcID }

func (e Event) Date() codec.Date               { return e.w.Date }
func (e Event) Info() string                   { return e.w.Info }
func (e Event) UUID() uuid.UUID                { return e.w.UUID }
func (e Event) Published() bool                { return e.w.Published }
func (e Event) Analysis() Analysis             { return e.w.Analysis }
func (e Event) AttributeCount() uint64         { return uint64(e.w.AttributeCount) }
func (e Event) Timestamp() time.Time           { return e.w.Timestamp.Time }
func (e Event) Distribution() Distribution     { return e.w.Distribution }
func (e Event) SharingGroupID() uint64         { return uint64(e.w.SharingGroupID) }
func (e Event) ProposalEmailLock() bool        { return e.w.ProposalEmailLock }
func (e Event) Locked() bool                   { return e.w.Locked }
func (e Event) ThreatLevel() ThreatLevel       { return e.w.ThreatLevel }
func (e Event) PublishTimestamp() time.Time    { return e.w.PublishTimestamp.Time }
func (e Event) DisableCorrelation() bool       { return e.w.DisableCorrelation }
func (e Event) Identifier() EventIdentifier    { return FromGlobalID[EventID](e.w.UUID) }

// Extends returns the UUID of the event this one extends, or "" if none.
func (e Event) Extends() string { return e.w.ExtendsUUID }

func (e Event) MarshalJSON() ([]byte, error) { return json.Marshal(e.w) }

func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventJSON
	if err := decodeRecord(data, &w, eventSchema); err != nil {
		return err
	}
	e.w = w
	return nil
}

// FullEvent is an event as returned by a single-event fetch or a search:
// the listing fields plus its organizations, attributes and objects.
type FullEvent struct {
	Event
	x eventExtras
}

type eventExtras struct {
	Org             Organization    `json:"Org,omitzero"`
	Orgc            Organization    `json:"Orgc,omitzero"`
	Attribute       []FullAttribute `json:"Attribute"`
	ShadowAttribute json.RawMessage `json:"ShadowAttribute,omitempty"`
	RelatedEvent    json.RawMessage `json:"RelatedEvent,omitempty"`
	Galaxy          json.RawMessage `json:"Galaxy,omitempty"`
	Object          []FullObject    `json:"Object"`
	Tag             json.RawMessage `json:"Tag,omitempty"`
}

type fullEventJSON struct {
	eventJSON
	eventExtras
}

// Org returns the organization currently owning the event.
func (e FullEvent) Org() Organization { return e.x.Org }

// Orgc returns the organization that created the event.
func (e FullEvent) Orgc() Organization { return e.x.Orgc }

// Attributes returns a copy of the event-level attributes (attributes that
// belong to objects are reached through Objects).
func (e FullEvent) Attributes() []FullAttribute { return slices.Clone(e.x.Attribute) }

// Objects returns a copy of the event's objects.
func (e FullEvent) Objects() []FullObject { return slices.Clone(e.x.Object) }

func (e FullEvent) ShadowAttributes() json.RawMessage { return e.x.ShadowAttribute }
func (e FullEvent) RelatedEvents() json.RawMessage    { return e.x.RelatedEvent }
func (e FullEvent) Galaxies() json.RawMessage         { return e.x.Galaxy }
func (e FullEvent) Tags() json.RawMessage             { return e.x.Tag }

func (e FullEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(fullEventJSON{e.w, e.x})
}

func (e *FullEvent) UnmarshalJSON(data []byte) error {
	var w fullEventJSON
	if err := decodeRecord(data, &w, fullEventSchema); err != nil {
		return err
	}
	*e = FullEvent{Event: Event{w: w.eventJSON}, x: w.eventExtras}
	return nil
}
