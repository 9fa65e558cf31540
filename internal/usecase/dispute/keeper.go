package dispute

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/goroutine"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
)

// Keeper от имени оператора продвигает споры с истёкшими сроками.
// Это обычный вызывающий: движок сам по себе сроки не отслеживает.
type Keeper struct {
	engine   *Engine
	disputes repository.DisputeRepository
	interval time.Duration
	batch    int
	now      func() time.Time
}

func NewKeeper(engine *Engine, disputes repository.DisputeRepository, interval time.Duration) *Keeper {
	return &Keeper{
		engine:   engine,
		disputes: disputes,
		interval: interval,
		batch:    50,
		now:      time.Now,
	}
}

func (k *Keeper) SetNowFunc(now func() time.Time) {
	if now != nil {
		k.now = now
	}
}

// SetBatchSize задаёт размер страницы ListDue.
func (k *Keeper) SetBatchSize(n int) {
	if n > 0 {
		k.batch = n
	}
}

// RunOnce обходит все просроченные споры постранично и возвращает число продвинутых.
// Продвинутый спор выпадает из выборки, поэтому смещение растёт только на число неудач.
func (k *Keeper) RunOnce(ctx context.Context) (int, error) {
	now := k.now()
	// Оператор читается на каждом обходе: его могли сменить через реестр.
	operator := k.engine.registry.Operator()

	advanced, offset := 0, 0
	for {
		due, err := k.disputes.ListDue(ctx, now, offset, k.batch)
		if err != nil {
			return advanced, err
		}

		for _, d := range due {
			var stepErr error
			switch d.Status {
			case valueobject.DisputeStatusEvidence:
				_, stepErr = k.engine.StartVoting(ctx, d.ID, operator)
			case valueobject.DisputeStatusVoting:
				_, stepErr = k.engine.Finalize(ctx, d.ID)
			default:
				offset++
				continue
			}
			if stepErr != nil {
				// Ошибка одного спора не останавливает обработку остальных.
				logger.Component("keeper").WithFields(logrus.Fields{
					"dispute_id": d.ID,
					"status":     d.Status,
				}).WithError(stepErr).Warn("не удалось продвинуть спор")
				offset++
				continue
			}
			advanced++
		}

		if len(due) < k.batch || ctx.Err() != nil {
			return advanced, ctx.Err()
		}
	}
}

// Start запускает периодический обход до отмены ctx. Нулевой интервал отключает обход.
func (k *Keeper) Start(ctx context.Context) {
	if k.interval <= 0 {
		return
	}
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := k.RunOnce(ctx); err != nil {
					logger.Component("keeper").WithError(err).Error("обход споров завершился ошибкой")
				} else if n > 0 {
					logger.Component("keeper").WithField("advanced", n).Info("споры продвинуты")
				}
			}
		}
	})
}
