package assets

import (
	"net/netip"
	"strings"

	"github.com/prism-sec/prism/pkg/models"
	"github.com/sirupsen/logrus"
)

// criticalityRules maps asset type keywords to criticality tiers.
// Rules are evaluated in order; the first match wins.
var criticalityRules = []struct {
	keywords []string
	tier     models.Criticality
}{
	{[]string{"payment", "financial"}, models.CriticalityCritical},
	{[]string{"database", "auth"}, models.CriticalityHigh},
	{[]string{"web"}, models.CriticalityMedium},
}

// privateRanges are the RFC 1918 address blocks. Anything outside
// these counts as publicly routable for exposure classification.
var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// Business function keywords that adjust exposure classification
var (
	publicFunctionKeywords  = []string{"public", "cdn", "customer-portal"}
	partnerFunctionKeywords = []string{"partner", "vpn", "b2b"}
)

// Analyzer derives business context for assets
type Analyzer struct {
	logger *logrus.Logger
}

// NewAnalyzer creates a business context analyzer
func NewAnalyzer(logger *logrus.Logger) *Analyzer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Analyzer{logger: logger}
}

// AnalyzeContext derives the criticality and exposure tiers for an asset
func (a *Analyzer) AnalyzeContext(asset models.Asset) models.AssetContext {
	ctx := models.AssetContext{
		AssetID:           asset.ID,
		Criticality:       a.assessCriticality(asset),
		Exposure:          a.determineExposure(asset),
		BusinessFunctions: asset.BusinessFunctions,
	}

	a.logger.Debugf("Asset %s classified as criticality=%s exposure=%s", asset.ID, ctx.Criticality, ctx.Exposure)
	return ctx
}

// assessCriticality matches the asset type against the keyword rules
func (a *Analyzer) assessCriticality(asset models.Asset) models.Criticality {
	assetType := strings.ToLower(asset.Type)
	for _, rule := range criticalityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(assetType, kw) {
				return rule.tier
			}
		}
	}
	return models.CriticalityLow
}

// determineExposure classifies how reachable the asset is. Assets with
// a publicly routable IP are INTERNET_FACING, escalated to
// PUBLICLY_ACCESSIBLE when a declared business function marks the
// asset as serving the public. Private-only assets reachable through
// partner or VPN functions are EXTERNAL; everything else is INTERNAL.
func (a *Analyzer) determineExposure(asset models.Asset) models.Exposure {
	hasPublicIP := false
	for _, ip := range asset.IPAddresses {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			// Unparseable addresses are treated as private rather
			// than inflating exposure on bad inventory data
			a.logger.Warnf("Asset %s has unparseable IP %q, ignoring", asset.ID, ip)
			continue
		}
		if !isPrivate(addr) {
			hasPublicIP = true
			break
		}
	}

	if hasPublicIP {
		if matchesFunction(asset.BusinessFunctions, publicFunctionKeywords) {
			return models.ExposurePubliclyAccessible
		}
		return models.ExposureInternetFacing
	}
	if matchesFunction(asset.BusinessFunctions, partnerFunctionKeywords) {
		return models.ExposureExternal
	}
	return models.ExposureInternal
}

func isPrivate(addr netip.Addr) bool {
	for _, prefix := range privateRanges {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func matchesFunction(functions []string, keywords []string) bool {
	for _, fn := range functions {
		lower := strings.ToLower(fn)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}
