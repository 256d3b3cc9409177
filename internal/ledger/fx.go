package ledger

import (
	"github.com/jimmy-lan/habits-restapi/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
)
