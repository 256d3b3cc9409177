package transaction

import (
	"github.com/jimmy-lan/habits-restapi/internal/transaction/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction.repository",
	fx.Provide(repository.Provide),
)
