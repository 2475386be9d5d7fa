package builder

import (
	"github.com/doctor-direct/ai-orchestrator/internal/config"
	"github.com/gofiber/fiber/v2"
)

func FromYAML(path string, envFiles []string) (*Builder, error) {
	if len(envFiles) > 0 {
		config.LoadEnvFiles(envFiles)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	return FromConfig(cfg), nil
}

// FromEnv builds from environment variables after loading envFiles
func FromEnv(envFiles []string) *Builder {
	if len(envFiles) > 0 {
		config.LoadEnvFiles(envFiles)
	}
	return FromConfig(config.FromEnv())
}

func FromConfig(cfg *config.Config) *Builder {
	return &Builder{
		cfg:         cfg,
		middlewares: []fiber.Handler{},
	}
}
