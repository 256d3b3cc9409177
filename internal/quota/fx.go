package quota

import (
	"github.com/jimmy-lan/habits-restapi/internal/quota/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.repository",
	fx.Provide(repository.Provide),
)
