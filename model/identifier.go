// Package model defines the MISP entities as immutable Go values: typed
// identifiers, the enumerations used on the wire, and the core/full record
// pairs decoded from API responses.
package model

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/ashita-ai/misp/codec"
)

// ErrAddressResolution is returned when text cannot be turned into an
// identifier of the requested kind.
var ErrAddressResolution = errors.New("model: address resolution failed")

// EventID is the server-assigned sequence number of an event.
type EventID uint64

// AttributeID is the server-assigned sequence number of an attribute.
type AttributeID uint64

// ObjectID is the server-assigned sequence number of an object.
type ObjectID uint64

// OrganizationID is the server-assigned sequence number of an organization.
type OrganizationID uint64

func (id EventID) String() string        { return strconv.FormatUint(uint64(id), 10) }
func (id AttributeID) String() string    { return strconv.FormatUint(uint64(id), 10) }
func (id ObjectID) String() string       { return strconv.FormatUint(uint64(id), 10) }
func (id OrganizationID) String() string { return strconv.FormatUint(uint64(id), 10) }

func (id EventID) MarshalJSON() ([]byte, error)        { return codec.EncodeNumber(id), nil }
func (id AttributeID) MarshalJSON() ([]byte, error)    { return codec.EncodeNumber(id), nil }
func (id ObjectID) MarshalJSON() ([]byte, error)       { return codec.EncodeNumber(id), nil }
func (id OrganizationID) MarshalJSON() ([]byte, error) { return codec.EncodeNumber(id), nil }

func (id *EventID) UnmarshalJSON(data []byte) error        { return decodeInto(id, data) }
func (id *AttributeID) UnmarshalJSON(data []byte) error    { return decodeInto(id, data) }
func (id *ObjectID) UnmarshalJSON(data []byte) error       { return decodeInto(id, data) }
func (id *OrganizationID) UnmarshalJSON(data []byte) error { return decodeInto(id, data) }

func decodeInto[T codec.Integer](dst *T, data []byte) error {
	v, err := codec.DecodeNumber[T](data)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// LocalID is the set of local identifier types, one per entity kind.
type LocalID interface {
	EventID | AttributeID | ObjectID | OrganizationID
}

// Form tells which representation an Identifier carries.
type Form uint8

const (
	FormLocal Form = iota + 1
	FormGlobal
	FormNamed
)

func (f Form) String() string {
	switch f {
	case FormLocal:
		return "local"
	case FormGlobal:
		return "global"
	case FormNamed:
		return "named"
	default:
		return "unset"
	}
}

// Identifier addresses one entity of the kind given by L, either by its
// local id, by its UUID, or (organizations only) by its short name.
// Exactly one form is populated; the zero value addresses nothing.
type Identifier[L LocalID] struct {
	form   Form
	local  L
	global uuid.UUID
	name   string
}

type (
	EventIdentifier        = Identifier[EventID]
	AttributeIdentifier    = Identifier[AttributeID]
	ObjectIdentifier       = Identifier[ObjectID]
	OrganizationIdentifier = Identifier[OrganizationID]
)

// FromLocalID addresses an entity by its server-assigned number.
func FromLocalID[L LocalID](id L) Identifier[L] {
	return Identifier[L]{form: FormLocal, local: id}
}

// FromGlobalID addresses an entity by its UUID.
func FromGlobalID[L LocalID](id uuid.UUID) Identifier[L] {
	return Identifier[L]{form: FormGlobal, global: id}
}

// FromName addresses an organization by its short name.
func FromName(name string) OrganizationIdentifier {
	return OrganizationIdentifier{form: FormNamed, name: name}
}

// ParseIdentifier reads the textual forms accepted on the command line: a
// UUID, a decimal id, or for organizations any other text as a name.
// Other kinds fail with ErrAddressResolution.
func ParseIdentifier[L LocalID](s string) (Identifier[L], error) {
	if u, err := uuid.Parse(s); err == nil {
		return FromGlobalID[L](u), nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return FromLocalID(L(n)), nil
	}
	var zero L
	if _, ok := any(zero).(OrganizationID); ok && s != "" {
		return Identifier[L]{form: FormNamed, name: s}, nil
	}
	return Identifier[L]{}, fmt.Errorf("%w: %q is neither a uuid nor a numeric id", ErrAddressResolution, s)
}

func (i Identifier[L]) Form() Form { return i.form }

// IsZero reports whether no form is populated.
func (i Identifier[L]) IsZero() bool { return i.form == 0 }

// Local returns the local id when the identifier carries one.
func (i Identifier[L]) Local() (L, bool) {
	return i.local, i.form == FormLocal
}

// Global returns the UUID when the identifier carries one.
func (i Identifier[L]) Global() (uuid.UUID, bool) {
	return i.global, i.form == FormGlobal
}

// Name returns the organization short name when the identifier carries one.
func (i Identifier[L]) Name() (string, bool) {
	return i.name, i.form == FormNamed
}

// WireForm renders the identifier as used in URL paths and query fields:
// decimal for local ids, lowercase hyphenated text for UUIDs, the name
// verbatim for named organizations.
func (i Identifier[L]) WireForm() string {
	switch i.form {
	case FormLocal:
		return strconv.FormatUint(uint64(i.local), 10)
	case FormGlobal:
		return i.global.String()
	case FormNamed:
		return i.name
	default:
		return ""
	}
}

func (i Identifier[L]) String() string { return i.WireForm() }

// MarshalText emits the wire form so identifiers serialize as JSON strings.
func (i Identifier[L]) MarshalText() ([]byte, error) {
	return []byte(i.WireForm()), nil
}
