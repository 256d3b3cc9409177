// Package reset runs the periodic job that zeroes the deleted-item
// quota counters. The deleted counters cap how much a user can delete
// between two runs; the reset gives that headroom back.
package reset

import (
	"context"
	"errors"
	"time"

	auditdomain "github.com/jimmy-lan/habits-restapi/internal/audit/domain"
	"github.com/jimmy-lan/habits-restapi/internal/clock"
	quotadomain "github.com/jimmy-lan/habits-restapi/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Quotas quotadomain.Repository
	Audit  auditdomain.Service `optional:"true"`
	Config Config              `optional:"true"`
}

type Worker struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	quotas quotadomain.Repository
	audit  auditdomain.Service
	cfg    Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:     p.DB,
		log:    p.Log.Named("quota.reset"),
		clock:  p.Clock,
		quotas: p.Quotas,
		audit:  p.Audit,
		cfg:    p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("quota reset run failed", zap.Error(err))
		}
	}
}

// RunOnce resets the deleted counters in batches until no row is left
// over its zero mark. Each batch commits on its own so a failure keeps
// the progress made so far.
func (w *Worker) RunOnce(ctx context.Context) (int64, error) {
	if w.db == nil || w.quotas == nil {
		return 0, errors.New("reset_worker_unavailable")
	}

	var total int64
	for {
		var reset int64
		err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			reset, err = w.quotas.ResetDeletedCounters(ctx, tx, w.cfg.BatchSize, w.clock.Now())
			return err
		})
		if err != nil {
			return total, err
		}
		total += reset
		if reset < int64(w.cfg.BatchSize) {
			break
		}
	}

	if total > 0 {
		w.log.Info("deleted quota counters reset", zap.Int64("rows", total))
		if w.audit != nil {
			err := w.audit.Record(ctx, nil, auditdomain.Entry{
				ActorType:  auditdomain.ActorTypeSystem,
				Action:     "quota.reset_deleted_counters",
				TargetType: "quota",
				Metadata:   map[string]any{"rows": total},
			})
			if err != nil {
				w.log.Warn("quota reset audit failed", zap.Error(err))
			}
		}
	}
	return total, nil
}
