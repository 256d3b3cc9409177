package audit

import (
	"github.com/jimmy-lan/habits-restapi/internal/audit/repository"
	"github.com/jimmy-lan/habits-restapi/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
