package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/samplegen/internal/envvar"
)

// Environment is the deployment environment the process runs in.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// FromEnv reads the environment from SAMPLEGEN_ENV, defaulting to development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.SamplegenEnv))
}

// Parse maps a string to an Environment. Unknown values fall back to development.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "production":
		return Production
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}
