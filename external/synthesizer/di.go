package synthesizer

import (
	"github.com/foxseedlab/zadankai/internal/config"
	"github.com/foxseedlab/zadankai/internal/synthesizer"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (synthesizer.Synthesizer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewCloudTTSSynthesizer(CloudTTSConfig{
			CredentialsJSON: cfg.GoogleCloudCredentialsJSON,
			Language:        cfg.DefaultLanguage,
		}), nil
	})
}
