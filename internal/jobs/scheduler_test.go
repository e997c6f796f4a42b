package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/invest-bot/internal/features/ledger"
	"serotonyl.ru/invest-bot/internal/features/notify"
)

type stubPending struct {
	stats ledger.PendingStats
	err   error
}

func (s stubPending) PendingStats(context.Context) (ledger.PendingStats, error) {
	return s.stats, s.err
}

func TestDigestSkipsEmpty(t *testing.T) {
	var sent []string
	notifyAdmin := func(text string) bool { sent = append(sent, text); return true }

	s := NewScheduler("UTC", stubPending{}, notify.NewDedup(time.Minute, 4), notifyAdmin)
	s.Digest(context.Background())
	assert.Empty(t, sent)

	s.pending = stubPending{err: errors.New("db down")}
	s.Digest(context.Background())
	assert.Empty(t, sent)

	s.pending = stubPending{stats: ledger.PendingStats{Withdrawals: 1, WithdrawalsTotal: decimal.NewFromInt(40)}}
	s.Digest(context.Background())
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Выводы: 1 на $40.00")
}

func TestSchedules(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	at := time.Date(2026, 3, 1, 12, 7, 0, 0, loc)

	digest, err := cron.ParseStandard(DigestSpec)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 13, 0, 0, 0, loc), digest.Next(at))

	prune, err := cron.ParseStandard(PruneSpec)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 10, 0, 0, loc), prune.Next(at))
}

func TestStartStop(t *testing.T) {
	s := NewScheduler("Europe/Moscow", stubPending{}, notify.NewDedup(time.Minute, 4), func(string) bool { return true })
	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}
