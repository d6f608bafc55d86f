// internal/workers/discovery/collect-brand-intel/models.go
package collectbrandintel

import "resonance-pipeline/internal/models"

type Input struct {
	BrandID     string `json:"brandId"`
	CountryCode string `json:"countryCode"`
}

type Output struct {
	Profile   *models.BrandProfile `json:"profile"`
	FromCache bool                 `json:"fromCache"`
}
