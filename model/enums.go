package model

import (
	"strconv"

	"github.com/ashita-ai/misp/codec"
)

// The enumerations below store the numeric wire code directly. Codes outside
// the named set are valid values (the server may know more than this
// client); Known reports whether a value is one of the named variants.

// Analysis is the maturity of an event's analysis.
type Analysis uint16

const (
	AnalysisInitial  Analysis = 0
	AnalysisOngoing  Analysis = 1
	AnalysisComplete Analysis = 2
)

func (a Analysis) Known() bool { return a <= AnalysisComplete }

func (a Analysis) String() string {
	switch a {
	case AnalysisInitial:
		return "initial"
	case AnalysisOngoing:
		return "ongoing"
	case AnalysisComplete:
		return "complete"
	default:
		return "custom(" + strconv.FormatUint(uint64(a), 10) + ")"
	}
}

func (a Analysis) MarshalJSON() ([]byte, error) { return codec.EncodeNumber(a), nil }

func (a *Analysis) UnmarshalJSON(data []byte) error { return decodeInto(a, data) }

// Distribution controls how far an event or attribute is shared.
type Distribution uint16

const (
	DistributionYourOrganizationOnly Distribution = 0
	DistributionThisCommunityOnly    Distribution = 1
	DistributionConnectedCommunities Distribution = 2
	DistributionAllCommunities       Distribution = 3
	DistributionSharingGroup         Distribution = 4
)

func (d Distribution) Known() bool { return d <= DistributionSharingGroup }

func (d Distribution) String() string {
	switch d {
	case DistributionYourOrganizationOnly:
		return "your_organization_only"
	case DistributionThisCommunityOnly:
		return "this_community_only"
	case DistributionConnectedCommunities:
		return "connected_communities"
	case DistributionAllCommunities:
		return "all_communities"
	case DistributionSharingGroup:
		return "sharing_group"
	default:
		return "unsupported(" + strconv.FormatUint(uint64(d), 10) + ")"
	}
}

func (d Distribution) MarshalJSON() ([]byte, error) { return codec.EncodeNumber(d), nil }

func (d *Distribution) UnmarshalJSON(data []byte) error { return decodeInto(d, data) }

// ThreatLevel is the severity assigned to an event.
type ThreatLevel uint64

const (
	ThreatLevelHigh      ThreatLevel = 1
	ThreatLevelMedium    ThreatLevel = 2
	ThreatLevelLow       ThreatLevel = 3
	ThreatLevelUndefined ThreatLevel = 4
)

func (t ThreatLevel) Known() bool { return t >= ThreatLevelHigh && t <= ThreatLevelUndefined }

func (t ThreatLevel) String() string {
	switch t {
	case ThreatLevelHigh:
		return "high"
	case ThreatLevelMedium:
		return "medium"
	case ThreatLevelLow:
		return "low"
	case ThreatLevelUndefined:
		return "undefined"
	default:
		return "custom(" + strconv.FormatUint(uint64(t), 10) + ")"
	}
}

func (t ThreatLevel) MarshalJSON() ([]byte, error) { return codec.EncodeNumber(t), nil }

func (t *ThreatLevel) UnmarshalJSON(data []byte) error { return decodeInto(t, data) }
