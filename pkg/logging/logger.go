package logging

import (
	"go.uber.org/zap"
)

// New builds the process-wide zap logger. Development environments get the
// console encoder with colored levels; everything else logs structured JSON.
func New(env string) (*zap.Logger, error) {
	if env == "development" || env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
