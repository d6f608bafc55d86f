// internal/common/intel/provider.go
package intel

import (
	"context"

	"resonance-pipeline/internal/models"
)

type Section string

const (
	SectionRegistry      Section = "registry"
	SectionFirmographics Section = "firmographics"
	SectionMedia         Section = "media"
)

// SectionData is one provider's raw contribution to a BrandProfile. Fields
// outside the provider's section stay zero.
type SectionData struct {
	Section             Section
	Name                string
	CountryCode         string
	ClassificationCodes []int
	RevenueTier         int
	EmployeeTier        int
	Mentions            []models.MediaMention
}

// Provider is one independent market-intelligence source. Implementations are
// best-effort: results may be empty, and callers own timeout and retry policy.
type Provider interface {
	Name() string
	Section() Section
	Fetch(ctx context.Context, brandID, countryCode string) (*SectionData, error)
}
