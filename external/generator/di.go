package generator

import (
	"github.com/foxseedlab/zadankai/internal/config"
	"github.com/foxseedlab/zadankai/internal/generator"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (generator.Generator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	})
}
