package gateway

import (
	"github.com/foxseedlab/zadankai/internal/meeting"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		return NewServer(do.MustInvoke[*meeting.Manager](i)), nil
	})
}
