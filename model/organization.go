package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/misp/codec"
)

// Organization is the short organization record embedded in events
// ("Org" and "Orgc").
type Organization struct {
	w organizationJSON
}

type organizationJSON struct {
	ID   OrganizationID `json:"id"`
	Name string         `json:"name"`
	UUID uuid.UUID      `json:"uuid,omitzero"`
}

func (o Organization) ID() OrganizationID { return o.w.ID }
func (o Organization) Name() string       { return o.w.Name }
func (o Organization) UUID() uuid.UUID    { return o.w.UUID }

// Identifier returns the global identifier of the organization.
func (o Organization) Identifier() OrganizationIdentifier {
	return FromGlobalID[OrganizationID](o.w.UUID)
}

func (o Organization) MarshalJSON() ([]byte, error) { return json.Marshal(o.w) }

func (o *Organization) UnmarshalJSON(data []byte) error {
	var w organizationJSON
	if err := decodeRecord(data, &w, organizationSchema); err != nil {
		return err
	}
	o.w = w
	return nil
}

// FullOrganization is the complete organization record.
type FullOrganization struct {
	Organization
	x organizationExtras
}

type organizationExtras struct {
	DateCreated        *codec.Timestamp `json:"date_created"`
	DateModified       *codec.Timestamp `json:"date_modified"`
	Description        string           `json:"description"`
	Nationality        string           `json:"nationality"`
	Sector             string           `json:"sector"`
	CreatedBy          codec.Uint64     `json:"created_by"`
	Contacts           string           `json:"contacts"`
	Local              bool             `json:"local"`
	RestrictedToDomain string           `json:"restricted_to_domain"`
	LandingPage        string           `json:"landingpage"`
}

type fullOrganizationJSON struct {
	organizationJSON
	organizationExtras
}

// DateCreated returns when the organization was created, if known.
func (o FullOrganization) DateCreated() (time.Time, bool)  { return optionalTime(o.x.DateCreated) }
func (o FullOrganization) DateModified() (time.Time, bool) { return optionalTime(o.x.DateModified) }
func (o FullOrganization) Description() string             { return o.x.Description }
func (o FullOrganization) Nationality() string             { return o.x.Nationality }
func (o FullOrganization) Sector() string                  { return o.x.Sector }
func (o FullOrganization) CreatedBy() uint64               { return uint64(o.x.CreatedBy) }
func (o FullOrganization) Contacts() string                { return o.x.Contacts }
func (o FullOrganization) Local() bool                     { return o.x.Local }
func (o FullOrganization) RestrictedToDomain() string      { return o.x.RestrictedToDomain }
func (o FullOrganization) LandingPage() string             { return o.x.LandingPage }

func (o FullOrganization) MarshalJSON() ([]byte, error) {
	return json.Marshal(fullOrganizationJSON{o.w, o.x})
}

func (o *FullOrganization) UnmarshalJSON(data []byte) error {
	var w fullOrganizationJSON
	if err := decodeRecord(data, &w, fullOrganizationSchema); err != nil {
		return err
	}
	*o = FullOrganization{Organization: Organization{w: w.organizationJSON}, x: w.organizationExtras}
	return nil
}

func optionalTime(ts *codec.Timestamp) (time.Time, bool) {
	if ts == nil {
		return time.Time{}, false
	}
	return ts.Time, true
}
