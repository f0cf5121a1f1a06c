package assets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/prism-sec/prism/pkg/models"
)

// inventoryEntry is one asset in the inventory file, with the
// vulnerability identifiers known to affect it
type inventoryEntry struct {
	ID                string   `yaml:"id"`
	Type              string   `yaml:"type"`
	IPAddresses       []string `yaml:"ip_addresses"`
	BusinessFunctions []string `yaml:"business_functions"`
	Vulnerabilities   []string `yaml:"vulnerabilities"`
}

type inventoryFile struct {
	Assets []inventoryEntry `yaml:"assets"`
}

// Inventory maps vulnerability identifiers to the asset they affect.
// When multiple assets declare the same vulnerability, the first one
// listed wins.
type Inventory struct {
	byVuln map[string]models.Asset
	assets []models.Asset
}

// LoadInventory reads an asset inventory YAML file. A missing file
// yields an empty inventory rather than an error: scoring without
// business context is valid, the context factor is simply neutral.
func LoadInventory(path string) (*Inventory, error) {
	inv := &Inventory{byVuln: make(map[string]models.Asset)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return inv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading asset inventory %s: %w", path, err)
	}

	var file inventoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing asset inventory %s: %w", path, err)
	}

	for _, entry := range file.Assets {
		asset := models.Asset{
			ID:                entry.ID,
			Type:              entry.Type,
			IPAddresses:       entry.IPAddresses,
			BusinessFunctions: entry.BusinessFunctions,
		}
		inv.assets = append(inv.assets, asset)
		for _, vulnID := range entry.Vulnerabilities {
			if _, exists := inv.byVuln[vulnID]; !exists {
				inv.byVuln[vulnID] = asset
			}
		}
	}
	return inv, nil
}

// AssetFor returns the asset affected by the given vulnerability, if any
func (inv *Inventory) AssetFor(vulnID string) (models.Asset, bool) {
	asset, ok := inv.byVuln[vulnID]
	return asset, ok
}

// Assets returns all inventoried assets
func (inv *Inventory) Assets() []models.Asset {
	return inv.assets
}
