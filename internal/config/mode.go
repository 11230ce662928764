package config

import "os"

// DeploymentMode represents the deployment context the service is running
// under. Narrowed from the teacher's three-way development/packaged/ci split
// (internal/config/mode.go in the reference repository) to the two contexts
// that matter for a long-running service plus CI: there is no "packaged
// single binary, brew install" mode here, only a process that is either
// being run locally against Docker Compose, in CI, or in production.
type DeploymentMode string

const (
	// ModeLocal is local development against docker-compose services.
	ModeLocal DeploymentMode = "local"
	// ModeCI is a CI/CD pipeline run (tests, migration dry-runs).
	ModeCI DeploymentMode = "ci"
	// ModeProduction is a deployed, customer-facing instance.
	ModeProduction DeploymentMode = "production"
)

// DetectMode determines the deployment context from the environment.
func DetectMode() DeploymentMode {
	if mode := os.Getenv("GRAPHKG_MODE"); mode != "" {
		switch mode {
		case "local", "dev", "development":
			return ModeLocal
		case "ci":
			return ModeCI
		case "production", "prod":
			return ModeProduction
		}
	}

	if isCI() {
		return ModeCI
	}

	if _, err := os.Stat(".env"); err == nil {
		return ModeLocal
	}

	return ModeProduction
}

func isCI() bool {
	for _, envVar := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "BUILDKITE"} {
		if os.Getenv(envVar) != "" {
			return true
		}
	}
	return false
}

// RequiresSecureCredentials reports whether insecure default passwords must
// be rejected outright rather than merely warned about.
func (m DeploymentMode) RequiresSecureCredentials() bool {
	return m == ModeProduction || m == ModeCI
}

// AllowsDevelopmentDefaults reports whether .env-sourced local defaults
// (localhost URIs, disabled TLS) are acceptable.
func (m DeploymentMode) AllowsDevelopmentDefaults() bool {
	return m == ModeLocal
}

// ConfigSource describes where credentials are expected to come from in
// this mode, used in validation error messages.
func (m DeploymentMode) ConfigSource() string {
	switch m {
	case ModeLocal:
		return ".env file"
	case ModeCI:
		return "environment variables only"
	case ModeProduction:
		return "environment variables or the OS keychain"
	default:
		return "unknown"
	}
}

func (m DeploymentMode) String() string { return string(m) }
