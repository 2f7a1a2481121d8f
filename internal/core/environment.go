package core

import "strings"

// Environment represents the deployment environment of the service.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the environment corresponds to production.
func (e Environment) IsProduction() bool {
	return e == Production
}

// HumanReadableLogs reports whether logs should go to a console writer
// instead of JSON lines.
func (e Environment) HumanReadableLogs() bool {
	return e == Development || e == Testing
}

// ParseEnvironment maps APP_ENV values (including short forms such as "prod"
// or "dev") onto a known environment. Unknown values fall back to Development.
func ParseEnvironment(v string) Environment {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	case "testing", "test":
		return Testing
	default:
		return Development
	}
}
