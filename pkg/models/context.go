package models

// Criticality represents the business criticality tier of an asset
type Criticality string

const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

// Exposure represents how reachable an asset is from outside the organization
type Exposure string

const (
	ExposureInternal           Exposure = "internal"
	ExposureExternal           Exposure = "external"
	ExposureInternetFacing     Exposure = "internet_facing"
	ExposurePubliclyAccessible Exposure = "publicly_accessible"
)

// AssetContext holds the business context derived for an asset
type AssetContext struct {
	AssetID           string      `json:"asset_id"`
	Criticality       Criticality `json:"criticality"`
	Exposure          Exposure    `json:"exposure_level"`
	BusinessFunctions []string    `json:"business_functions"`
}

// IsValid checks whether the criticality is one of the defined tiers
func (c Criticality) IsValid() bool {
	switch c {
	case CriticalityLow, CriticalityMedium, CriticalityHigh, CriticalityCritical:
		return true
	}
	return false
}

// IsValid checks whether the exposure is one of the defined tiers
func (e Exposure) IsValid() bool {
	switch e {
	case ExposureInternal, ExposureExternal, ExposureInternetFacing, ExposurePubliclyAccessible:
		return true
	}
	return false
}
