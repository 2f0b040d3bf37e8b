package meeting

import (
	"github.com/foxseedlab/zadankai/internal/audio"
	"github.com/foxseedlab/zadankai/internal/config"
	"github.com/foxseedlab/zadankai/internal/generator"
	"github.com/foxseedlab/zadankai/internal/repository"
	"github.com/foxseedlab/zadankai/internal/synthesizer"
	"github.com/foxseedlab/zadankai/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		return NewManager(
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[repository.Repository](i),
			do.MustInvoke[generator.Generator](i),
			do.MustInvoke[synthesizer.Synthesizer](i),
			do.MustInvoke[audio.Encoder](i),
			do.MustInvoke[webhook.Sender](i),
		), nil
	})
}
