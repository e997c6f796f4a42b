package notify_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/invest-bot/internal/features/notify"
	"serotonyl.ru/invest-bot/internal/features/notify/notifytest"
)

func TestTextRetriesOnce(t *testing.T) {
	rec := notifytest.New()
	n := notify.New(rec, 1).WithRetryDelay(time.Millisecond)

	rec.FailNext = 1
	assert.True(t, n.Text(5, "hello", nil))
	require.Len(t, rec.To(5), 1)

	rec.FailNext = 2
	assert.False(t, n.Text(5, "lost", nil), "после второй неудачи сообщение сбрасывается")
	assert.Len(t, rec.To(5), 1)
}

func TestAdminGoesToAdminChat(t *testing.T) {
	rec := notifytest.New()
	n := notify.New(rec, 777).WithRetryDelay(time.Millisecond)

	n.Admin("review", nil)
	last, ok := rec.Last(777)
	require.True(t, ok)
	assert.Equal(t, "review", last.Text)
	assert.Equal(t, int64(777), n.AdminID())
}

func TestEditAndAnswer(t *testing.T) {
	rec := notifytest.New()
	n := notify.New(rec, 1)

	n.Edit(1, 10, "done")
	n.AnswerCallback("cb-1", "")
	n.AnswerCallback("", "")

	require.Len(t, rec.Edits(), 1)
	assert.Equal(t, "done", rec.Edits()[0].Text)
	assert.Equal(t, []string{"cb-1"}, rec.Answers())
}

func TestDedupWindow(t *testing.T) {
	d := notify.NewDedup(10*time.Minute, 10)

	assert.True(t, d.Allow("deposit:1"))
	assert.False(t, d.Allow("deposit:1"))
	assert.True(t, d.Allow("deposit:2"))
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, 0, d.Prune(), "свежие ключи не удаляются")
}

func TestDedupExpiredKeyAllowedAgain(t *testing.T) {
	d := notify.NewDedup(time.Millisecond, 10)

	assert.True(t, d.Allow("k"))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, d.Allow("k"))

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, d.Prune())
	assert.Equal(t, 0, d.Len())
}

func TestDedupIsBounded(t *testing.T) {
	d := notify.NewDedup(time.Hour, 3)

	for i := 0; i < 10; i++ {
		assert.True(t, d.Allow(fmt.Sprintf("k%d", i)))
	}
	assert.Equal(t, 3, d.Len())
}
