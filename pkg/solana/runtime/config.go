package runtime

import (
	"github.com/code-payments/associated-token-account/pkg/config"
	"github.com/code-payments/associated-token-account/pkg/config/env"
	"github.com/code-payments/associated-token-account/pkg/config/memory"
	"github.com/code-payments/associated-token-account/pkg/config/wrapper"
)

const (
	envConfigPrefix = "RUNTIME_"

	LamportsPerByteYearConfigEnvName = envConfigPrefix + "LAMPORTS_PER_BYTE_YEAR"
	defaultLamportsPerByteYear       = 3480

	ExemptionThresholdYearsConfigEnvName = envConfigPrefix + "EXEMPTION_THRESHOLD_YEARS"
	defaultExemptionThresholdYears       = 2.0

	MaxCpiDepthConfigEnvName = envConfigPrefix + "MAX_CPI_DEPTH"
	defaultMaxCpiDepth       = 4
)

type conf struct {
	lamportsPerByteYear     config.Uint64
	exemptionThresholdYears config.Float64
	maxCpiDepth             config.Int64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			lamportsPerByteYear:     env.NewUint64Config(LamportsPerByteYearConfigEnvName, defaultLamportsPerByteYear),
			exemptionThresholdYears: env.NewFloat64Config(ExemptionThresholdYearsConfigEnvName, defaultExemptionThresholdYears),
			maxCpiDepth:             env.NewInt64Config(MaxCpiDepthConfigEnvName, defaultMaxCpiDepth),
		}
	}
}

type testOverrides struct {
	lamportsPerByteYear     uint64
	exemptionThresholdYears float64
	maxCpiDepth             int64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		lamportsPerByteYear := uint64(defaultLamportsPerByteYear)
		if overrides.lamportsPerByteYear > 0 {
			lamportsPerByteYear = overrides.lamportsPerByteYear
		}
		exemptionThresholdYears := float64(defaultExemptionThresholdYears)
		if overrides.exemptionThresholdYears > 0 {
			exemptionThresholdYears = overrides.exemptionThresholdYears
		}
		maxCpiDepth := int64(defaultMaxCpiDepth)
		if overrides.maxCpiDepth > 0 {
			maxCpiDepth = overrides.maxCpiDepth
		}

		return &conf{
			lamportsPerByteYear:     wrapper.NewUint64Config(memory.NewConfig(lamportsPerByteYear), defaultLamportsPerByteYear),
			exemptionThresholdYears: wrapper.NewFloat64Config(memory.NewConfig(exemptionThresholdYears), defaultExemptionThresholdYears),
			maxCpiDepth:             wrapper.NewInt64Config(memory.NewConfig(maxCpiDepth), defaultMaxCpiDepth),
		}
	}
}
