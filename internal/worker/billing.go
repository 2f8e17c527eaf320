package worker

import (
	"context"
	"log/slog"
	"time"

	"family-news-service/internal/repository"
	"family-news-service/internal/service"

	"github.com/robfig/cron/v3"
)

// BillingWorker drives recurring charges on a daily cron schedule. Runs are
// single-flight: if a previous run is still going, the next tick is skipped
// rather than overlapped.
type BillingWorker struct {
	cron     *cron.Cron
	schedule string
	payments service.PaymentService
	subRepo  repository.SubscriptionRepository
	logger   *slog.Logger
}

func NewBillingWorker(
	schedule string,
	payments service.PaymentService,
	subRepo repository.SubscriptionRepository,
	logger *slog.Logger,
) *BillingWorker {
	return &BillingWorker{
		cron: cron.New(
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		schedule: schedule,
		payments: payments,
		subRepo:  subRepo,
		logger:   logger,
	}
}

func (w *BillingWorker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		w.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("billing worker started", "schedule", w.schedule)
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (w *BillingWorker) Stop() {
	<-w.cron.Stop().Done()
}

// RunOnce charges every subscription due as of now. Each charge is isolated:
// one failure expires that subscription and the loop continues.
func (w *BillingWorker) RunOnce(ctx context.Context) (succeeded, failed int) {
	due, err := w.subRepo.DueForBilling(ctx, time.Now())
	if err != nil {
		w.logger.Error("billing run aborted, due query failed", "error", err)
		return 0, 0
	}
	if len(due) == 0 {
		w.logger.Info("billing run: nothing due")
		return 0, 0
	}

	for _, sub := range due {
		if err := w.payments.ChargeRecurring(ctx, sub); err != nil {
			w.logger.Error("recurring charge failed",
				"subscription_id", sub.ID, "group_id", sub.GroupID, "error", err)
			failed++
			continue
		}
		succeeded++
	}

	w.logger.Info("billing run finished",
		"due", len(due), "succeeded", succeeded, "failed", failed)
	return succeeded, failed
}
