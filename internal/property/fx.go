package property

import (
	"github.com/jimmy-lan/habits-restapi/internal/property/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("property.repository",
	fx.Provide(repository.Provide),
)
