// internal/models/brand.go
package models

import "time"

// BrandProfile is one brand's normalized market-intelligence snapshot.
// Produced by the collect-brand-intel worker, immutable afterwards.
type BrandProfile struct {
	BrandID             string              `json:"brandId"`
	Name                string              `json:"name"`
	CountryCode         string              `json:"countryCode"`
	ClassificationCodes []int               `json:"classificationCodes"`
	RevenueTier         int                 `json:"revenueTier"`  // 1..5, 0 = unknown
	EmployeeTier        int                 `json:"employeeTier"` // 1..5, 0 = unknown
	Mentions            []MediaMention      `json:"mentions"`
	Completeness        SectionCompleteness `json:"completeness"`
}

type MediaMention struct {
	Outlet      string    `json:"outlet"`
	Headline    string    `json:"headline"`
	PublishedAt time.Time `json:"publishedAt"`
}

// SectionCompleteness records which provider sections were fully retrieved,
// so scoring can discount missing data instead of failing.
type SectionCompleteness struct {
	Registry      bool `json:"registry"`
	Firmographics bool `json:"firmographics"`
	Media         bool `json:"media"`
}

// Empty reports whether every section is missing.
func (c SectionCompleteness) Empty() bool {
	return !c.Registry && !c.Firmographics && !c.Media
}
