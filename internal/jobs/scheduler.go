// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежечасная сводка для администратора
// и очистка кэша дедупликации уведомлений.
package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/features/admin"
	"serotonyl.ru/invest-bot/internal/features/ledger"
)

// Расписания
const (
	DigestSpec = "0 * * * *"    // каждый час
	PruneSpec  = "*/10 * * * *" // каждые 10 минут
)

// PendingSource отдаёт сводку ожидающих операций.
type PendingSource interface {
	PendingStats(ctx context.Context) (ledger.PendingStats, error)
}

// Pruner чистит устаревшие записи.
type Pruner interface {
	Prune() int
}

// Scheduler управляет фоновыми задачами.
// Вклады по расписанию не закрываются: это делается при просмотре «Мои вклады».
type Scheduler struct {
	cron    *cron.Cron
	pending PendingSource
	dedup   Pruner
	notify  func(text string) bool
}

// NewScheduler создаёт планировщик в часовом поясе timezone.
// notify отправляет текст администратору.
func NewScheduler(timezone string, pending PendingSource, dedup Pruner, notify func(text string) bool) *Scheduler {
	c := cron.New(cron.WithLocation(common.LoadLocation(timezone)))

	return &Scheduler{
		cron:    c,
		pending: pending,
		dedup:   dedup,
		notify:  notify,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(DigestSpec, func() { s.Digest(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(PruneSpec, func() { s.Prune() }); err != nil {
		return err
	}

	s.cron.Start()
	log.WithField("location", s.cron.Location().String()).Info("Планировщик задач запущен")
	return nil
}

// Digest отправляет администратору сводку, если есть что решать.
func (s *Scheduler) Digest(ctx context.Context) {
	log.Debug("[CRON] Сводка ожидающих операций")
	stats, err := s.pending.PendingStats(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка сводки")
		return
	}
	if stats.Empty() {
		return
	}
	if !s.notify(admin.FormatDigest(stats)) {
		log.Warn("[CRON] Сводка не доставлена")
	}
}

// Prune чистит кэш дедупликации.
func (s *Scheduler) Prune() {
	if n := s.dedup.Prune(); n > 0 {
		log.WithField("removed", n).Debug("[CRON] Кэш уведомлений очищен")
	}
}

// Stop останавливает планировщик и ждёт текущие задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
