package apps

import "strings"

// Environment tags an application deployment stage.
type Environment string

const (
	EnvDev  Environment = "dev"
	EnvTest Environment = "test"
	EnvProd Environment = "prod"
)

// Application represents a managed application.
type Application struct {
	ID          int64
	Name        string
	Description string
	Environment Environment
}

// environment suffixes carried by stored application names
var nameSuffixes = []string{"_DEV", "_TEST", "_PROD"}

// StripEnvSuffix removes the environment suffix from a stored application
// name for external display: FOO_DEV becomes FOO.
func StripEnvSuffix(name string) string {
	upper := strings.ToUpper(name)
	for _, suffix := range nameSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return name[:len(name)-len(suffix)]
		}
	}
	return name
}

// DisplayName returns the application name without its environment suffix.
func (a Application) DisplayName() string {
	return StripEnvSuffix(a.Name)
}
