package logging

import "go.uber.org/zap"

// New creates a zap logger for the given environment. Unknown environments
// get the production logger.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "local":
		return zap.NewExample(), nil
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
