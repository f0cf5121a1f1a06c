package models

import (
	"time"
)

// VulnerabilityRecord represents a normalized vulnerability from any ingestion source
type VulnerabilityRecord struct {
	ID            string     `json:"id"`             // Vulnerability identifier (e.g., CVE)
	Title         string     `json:"title"`          // Short human-readable title
	Severity      string     `json:"severity"`       // Vendor severity label (low, medium, high, critical)
	CVSS          float64    `json:"cvss_score"`     // CVSS base score, range 0-10
	PublishedDate *time.Time `json:"published_date"` // Publication date, nil if unknown
	HasExploit    bool       `json:"has_exploit"`    // Whether a public exploit is known
	InWild        bool       `json:"in_wild"`        // Whether exploitation has been observed in the wild
}

// Asset represents an inventoried system a vulnerability applies to
type Asset struct {
	ID                string   `json:"id"`                 // Asset identifier
	Type              string   `json:"type"`               // Asset type description (e.g., "payment-gateway")
	IPAddresses       []string `json:"ip_addresses"`       // Known IP addresses
	BusinessFunctions []string `json:"business_functions"` // Declared business functions
}

// Intelligence represents threat intelligence signals for a vulnerability
type Intelligence struct {
	CVEID      string  `json:"cve_id"`      // Vulnerability identifier the signals apply to
	HasExploit bool    `json:"has_exploit"` // Known exploited (KEV catalog membership)
	InWild     bool    `json:"in_wild"`     // Exploitation observed in the wild
	EPSS       float64 `json:"epss_score"`  // Exploit prediction score, range 0-1
}
