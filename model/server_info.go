package model

import "encoding/json"

// ServerInfo is the server metadata returned by servers/getVersion.json.
type ServerInfo struct {
	w serverInfoJSON
}

type serverInfoJSON struct {
	Version          string `json:"version"`
	PermSync         bool   `json:"perm_sync"`
	PermSighting     bool   `json:"perm_sighting"`
	PermGalaxyEditor bool   `json:"perm_galaxy_editor"`
}

func (s ServerInfo) Version() string { return s.w.Version }

// CanSync reports whether the calling user may synchronize with the server.
func (s ServerInfo) CanSync() bool { return s.w.PermSync }

// CanSight reports whether the calling user may add sightings.
func (s ServerInfo) CanSight() bool { return s.w.PermSighting }

func (s ServerInfo) CanEditGalaxies() bool { return s.w.PermGalaxyEditor }

func (s ServerInfo) MarshalJSON() ([]byte, error) { return json.Marshal(s.w) }

func (s *ServerInfo) UnmarshalJSON(data []byte) error {
	var w serverInfoJSON
	if err := decodeRecord(data, &w, serverInfoSchema); err != nil {
		return err
	}
	s.w = w
	return nil
}
