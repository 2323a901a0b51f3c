// Package catalog holds the service catalog and recommends services for a
// deal by scoring discovery-call transcripts against pain-point indicators.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed services.yaml
var servicesYAML []byte

// BundleSKU is the full-bundle service that replaces individual picks when
// enough distinct needs surface.
const BundleSKU = "CGO-BUNDLE"

// bundleThreshold is the number of distinct recommended services at which the
// recommendation collapses to the bundle.
const bundleThreshold = 4

// minIndicatorScore is the score a service needs on at least one transcript
// to be recommended. Each indicator hit is worth 2.
const minIndicatorScore = 2

// Service is one sellable line in the catalog.
type Service struct {
	SKU         string   `yaml:"sku"`
	Name        string   `yaml:"name"`
	Price       int      `yaml:"price"`
	Description string   `yaml:"description"`
	Indicators  []string `yaml:"indicators,omitempty"`
}

// Catalog is the loaded service catalog, ordered as authored.
type Catalog struct {
	services []Service
}

type catalogFile struct {
	Services []Service `yaml:"services"`
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(servicesYAML, &file); err != nil {
		return nil, fmt.Errorf("parse embedded service catalog: %w", err)
	}
	if len(file.Services) == 0 {
		return nil, fmt.Errorf("embedded service catalog is empty")
	}
	return &Catalog{services: file.Services}, nil
}

// Services returns the catalog in authored order.
func (c *Catalog) Services() []Service {
	return c.services
}

// Recommendation is the priced outcome of transcript scoring.
type Recommendation struct {
	Services     []Service
	TotalMonthly int
}

// Recommend scores the transcripts and returns the recommended services with
// their monthly total. Four or more distinct services collapse to the bundle;
// no signal at all falls back to the first catalog entry. The result order
// follows the catalog, so the same transcripts always produce the same
// recommendation.
func (c *Catalog) Recommend(transcripts []string) Recommendation {
	matched := make(map[string]bool)
	for _, transcript := range transcripts {
		lower := strings.ToLower(transcript)
		for i := range c.services {
			svc := &c.services[i]
			if svc.SKU == BundleSKU {
				continue
			}
			score := 0
			for _, indicator := range svc.Indicators {
				if strings.Contains(lower, indicator) {
					score += 2
				}
			}
			if score >= minIndicatorScore {
				matched[svc.SKU] = true
			}
		}
	}

	if len(matched) >= bundleThreshold {
		if bundle, ok := c.bySKU(BundleSKU); ok {
			return Recommendation{Services: []Service{bundle}, TotalMonthly: bundle.Price}
		}
	}

	var picked []Service
	total := 0
	for i := range c.services {
		if matched[c.services[i].SKU] {
			picked = append(picked, c.services[i])
			total += c.services[i].Price
		}
	}

	if len(picked) == 0 {
		fallback := c.services[0]
		return Recommendation{Services: []Service{fallback}, TotalMonthly: fallback.Price}
	}

	return Recommendation{Services: picked, TotalMonthly: total}
}

func (c *Catalog) bySKU(sku string) (Service, bool) {
	for i := range c.services {
		if c.services[i].SKU == sku {
			return c.services[i], true
		}
	}
	return Service{}, false
}
