package misp

import (
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/misp/codec"
	"github.com/ashita-ai/misp/model"
)

// Records and identifiers live in package model; the aliases let callers
// work with the root package alone.
type (
	Event            = model.Event
	FullEvent        = model.FullEvent
	Attribute        = model.Attribute
	FullAttribute    = model.FullAttribute
	Object           = model.Object
	FullObject       = model.FullObject
	Organization     = model.Organization
	FullOrganization = model.FullOrganization
	ServerInfo       = model.ServerInfo

	EventID        = model.EventID
	AttributeID    = model.AttributeID
	ObjectID       = model.ObjectID
	OrganizationID = model.OrganizationID

	EventIdentifier        = model.EventIdentifier
	AttributeIdentifier    = model.AttributeIdentifier
	ObjectIdentifier       = model.ObjectIdentifier
	OrganizationIdentifier = model.OrganizationIdentifier

	Analysis     = model.Analysis
	Distribution = model.Distribution
	ThreatLevel  = model.ThreatLevel

	Date      = codec.Date
	Timestamp = codec.Timestamp
)

// FromLocalID addresses an entity by its server-assigned number.
func FromLocalID[L model.LocalID](id L) model.Identifier[L] { return model.FromLocalID(id) }

// FromGlobalID addresses an entity by its UUID.
func FromGlobalID[L model.LocalID](id uuid.UUID) model.Identifier[L] {
	return model.FromGlobalID[L](id)
}

// FromName addresses an organization by its short name.
func FromName(name string) OrganizationIdentifier { return model.FromName(name) }

// NewDate returns the calendar date used by date filters.
func NewDate(year int, month time.Month, day int) Date { return codec.NewDate(year, month, day) }
