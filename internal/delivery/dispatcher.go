package delivery

import (
	"log/slog"
	"time"

	"github.com/ademelnik/jobsieve/internal/enrichment"
	"github.com/ademelnik/jobsieve/internal/model"
)

// Dispatcher consumes ready-for-delivery events, hands the vacancy to the
// notifier, and records the delivered transition. Delivery is at-least-once:
// a notify failure leaves the vacancy accepted so the startup resubmission
// retries it.
type Dispatcher struct {
	store    model.VacancyStore
	notifier model.Notifier
	logger   *slog.Logger
}

func NewDispatcher(store model.VacancyStore, notifier model.Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// HandleReady delivers one vacancy. Meant to be wired as the enrichment
// queue's OnReady callback.
func (d *Dispatcher) HandleReady(e enrichment.ReadyEvent) {
	if err := d.notifier.Notify(e.Vacancy, e.Classification, e.Letter); err != nil {
		d.logger.Error("delivery failed, vacancy stays accepted",
			"vacancy", e.Vacancy.ID,
			"error", err,
		)
		return
	}

	v, err := d.store.Load(e.Vacancy.ID)
	if err != nil {
		d.logger.Error("loading vacancy after delivery", "vacancy", e.Vacancy.ID, "error", err)
		return
	}
	if err := v.Transition(model.StatusDelivered); err != nil {
		// Already delivered by an earlier at-least-once attempt.
		d.logger.Warn("delivered transition refused", "vacancy", v.ID, "error", err)
		return
	}
	now := time.Now()
	v.DeliveredAt = &now
	if err := d.store.Save(v); err != nil {
		d.logger.Error("persisting delivered transition", "vacancy", v.ID, "error", err)
		return
	}
	d.logger.Info("vacancy delivered", "vacancy", v.ID, "with_letter", e.Letter != "")
}
