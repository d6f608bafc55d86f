// internal/workers/discovery/collect-brand-intel/handler.go
package collectbrandintel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/common/intel"
	"resonance-pipeline/internal/common/logger"
	"resonance-pipeline/internal/common/metrics"
	"resonance-pipeline/internal/models"
)

const (
	TaskType = "collect-brand-intel"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

// Handler builds a BrandProfile from three independent market-intelligence
// providers. Each provider gets its own timeout and bounded retry; a provider
// that exhausts retries contributes an empty section, and only the loss of
// all three fails the call.
type Handler struct {
	config    *Config
	providers []intel.Provider
	redis     *redis.Client
	logger    logger.Logger
	now       func() time.Time
}

func NewHandler(config *Config, providers []intel.Provider, rdb *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		providers: providers,
		redis:     rdb,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:       time.Now,
	}
}

type sectionResult struct {
	provider string
	section  intel.Section
	data     *intel.SectionData
	err      error
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.BrandID == "" {
		return nil, ErrNilInput
	}

	if profile := h.cachedProfile(ctx, input.BrandID); profile != nil {
		return &Output{Profile: profile, FromCache: true}, nil
	}

	results := make(chan sectionResult, len(h.providers))
	var wg sync.WaitGroup
	for _, provider := range h.providers {
		wg.Add(1)
		go func(p intel.Provider) {
			defer wg.Done()
			data, err := h.fetchWithRetry(ctx, p, input)
			results <- sectionResult{provider: p.Name(), section: p.Section(), data: data, err: err}
		}(provider)
	}
	wg.Wait()
	close(results)

	profile := &models.BrandProfile{
		BrandID:     input.BrandID,
		Name:        input.BrandID,
		CountryCode: input.CountryCode,
	}

	var firstErr error
	for res := range results {
		if res.err != nil {
			metrics.ProviderCalls.WithLabelValues(res.provider, "failure").Inc()
			h.logger.Warn("provider exhausted retries", map[string]interface{}{
				"brandId":  input.BrandID,
				"provider": res.provider,
				"error":    res.err.Error(),
			})
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}

		metrics.ProviderCalls.WithLabelValues(res.provider, "success").Inc()
		h.mergeSection(profile, res.data)
	}

	if profile.Completeness.Empty() {
		return nil, pipeerrors.NewDataUnavailableError(input.BrandID, firstErr)
	}

	h.storeProfile(ctx, profile)

	return &Output{Profile: profile}, nil
}

// fetchWithRetry applies the provider's own timeout per attempt and an
// exponential backoff between attempts.
func (h *Handler) fetchWithRetry(ctx context.Context, provider intel.Provider, input *Input) (*intel.SectionData, error) {
	policy := h.config.policyFor(provider.Name())

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, pipeerrors.NewProviderTimeoutError(provider.Name())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		data, err := provider.Fetch(attemptCtx, input.BrandID, input.CountryCode)
		cancel()

		if err == nil {
			return data, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, pipeerrors.NewProviderTimeoutError(provider.Name())
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return nil, pipeerrors.NewProviderTimeoutError(provider.Name())
	}
	return nil, pipeerrors.NewProviderQueryFailedError(provider.Name(), lastErr)
}

func (h *Handler) mergeSection(profile *models.BrandProfile, data *intel.SectionData) {
	if data == nil {
		return
	}

	switch data.Section {
	case intel.SectionRegistry:
		profile.Completeness.Registry = true
		profile.ClassificationCodes = data.ClassificationCodes
		if data.Name != "" {
			profile.Name = data.Name
		}
		if data.CountryCode != "" {
			profile.CountryCode = data.CountryCode
		}
	case intel.SectionFirmographics:
		profile.Completeness.Firmographics = true
		profile.RevenueTier = data.RevenueTier
		profile.EmployeeTier = data.EmployeeTier
	case intel.SectionMedia:
		profile.Completeness.Media = true
		profile.Mentions = data.Mentions
	}
}
