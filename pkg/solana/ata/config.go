package ata

import (
	"github.com/code-payments/associated-token-account/pkg/config"
	"github.com/code-payments/associated-token-account/pkg/config/env"
	"github.com/code-payments/associated-token-account/pkg/config/memory"
	"github.com/code-payments/associated-token-account/pkg/config/wrapper"
)

const (
	envConfigPrefix = "ATA_PROCESSOR_"

	EnableInstructionLoggingConfigEnvName = envConfigPrefix + "ENABLE_INSTRUCTION_LOGGING"
	defaultEnableInstructionLogging       = true
)

type conf struct {
	enableInstructionLogging config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			enableInstructionLogging: env.NewBoolConfig(EnableInstructionLoggingConfigEnvName, defaultEnableInstructionLogging),
		}
	}
}

type testOverrides struct {
	disableInstructionLogging bool
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			enableInstructionLogging: wrapper.NewBoolConfig(memory.NewConfig(!overrides.disableInstructionLogging), defaultEnableInstructionLogging),
		}
	}
}
