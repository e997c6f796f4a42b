// Package ledgertest содержит in-memory хранилище аккаунтов и журнала для тестов.
// Повторяет семантику SQL-репозиториев: проверки под блокировкой, CAS состояния,
// переход pending → completed/failed ровно один раз.
package ledgertest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/invest-bot/internal/common"
	"serotonyl.ru/invest-bot/internal/features/accounts"
	"serotonyl.ru/invest-bot/internal/features/ledger"
)

// MemStore реализует accounts.Store и ledger.Store.
type MemStore struct {
	mu          sync.Mutex
	accounts    map[int64]*accounts.Account
	investments map[int64]*ledger.Investment
	txs         map[int64]*ledger.Transaction
	nextID      int64
	clock       func() time.Time

	// FailCredit задаёт ошибку, которую вернёт CreditReferral для указанного реферера.
	FailCredit map[int64]error
}

var (
	_ accounts.Store = (*MemStore)(nil)
	_ ledger.Store   = (*MemStore)(nil)
)

// New создаёт пустое хранилище.
func New() *MemStore {
	return &MemStore{
		accounts:    make(map[int64]*accounts.Account),
		investments: make(map[int64]*ledger.Investment),
		txs:         make(map[int64]*ledger.Transaction),
		clock:       time.Now,
		FailCredit:  make(map[int64]error),
	}
}

// SetClock подменяет время created_at/updated_at.
func (m *MemStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = now
}

// Seed добавляет аккаунт как есть. Пустое состояние становится none.
func (m *MemStore) Seed(a accounts.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.State == "" {
		a.State = accounts.StateNone
	}
	if len(a.StateContext) == 0 {
		a.StateContext = json.RawMessage("{}")
	}
	if a.Language == "" {
		a.Language = "en"
	}
	m.nextID++
	a.ID = m.nextID
	m.accounts[a.UserID] = &a
}

// Snapshot возвращает копию аккаунта (nil, если нет).
func (m *MemStore) Snapshot(userID int64) *accounts.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil
	}
	return copyAccount(a)
}

// Transactions возвращает записи журнала аккаунта по возрастанию ID.
func (m *MemStore) Transactions(userID int64) []ledger.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Transaction
	for _, t := range m.txs {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Investments возвращает вклады аккаунта по возрастанию ID.
func (m *MemStore) Investments(userID int64) []ledger.Investment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Investment
	for _, inv := range m.investments {
		if inv.UserID == userID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- accounts.Store ---

func (m *MemStore) Create(_ context.Context, a *accounts.Account) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.UserID]; ok {
		return false, nil
	}
	cp := copyAccount(a)
	m.nextID++
	cp.ID = m.nextID
	cp.State = accounts.StateNone
	cp.StateContext = json.RawMessage("{}")
	cp.CreatedAt = m.clock()
	cp.UpdatedAt = cp.CreatedAt
	m.accounts[a.UserID] = cp
	return true, nil
}

func (m *MemStore) GetByUserID(_ context.Context, userID int64) (*accounts.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (m *MemStore) SetLanguage(_ context.Context, userID int64, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[userID]; ok {
		a.Language = lang
	}
	return nil
}

func (m *MemStore) SetState(_ context.Context, userID int64, to accounts.State, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[userID]; ok {
		a.State, a.StateContext = to, normalize(raw)
	}
	return nil
}

func (m *MemStore) CompareAndSetState(_ context.Context, userID int64, from, to accounts.State, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok || a.State != from {
		return common.ErrStateExpired
	}
	a.State, a.StateContext = to, normalize(raw)
	return nil
}

func (m *MemStore) SaveWallet(_ context.Context, userID int64, from accounts.State, address, network string, to accounts.State, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok || a.State != from {
		return common.ErrStateExpired
	}
	a.WalletAddress, a.WalletNetwork = &address, &network
	a.State, a.StateContext = to, normalize(raw)
	return nil
}

func (m *MemStore) ReferralCounts(_ context.Context, userID int64) (accounts.ReferralCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	children := func(parents map[int64]bool) map[int64]bool {
		out := make(map[int64]bool)
		for id, a := range m.accounts {
			if a.ReferrerUserID != nil && parents[*a.ReferrerUserID] {
				out[id] = true
			}
		}
		return out
	}
	l1 := children(map[int64]bool{userID: true})
	l2 := children(l1)
	l3 := children(l2)
	return accounts.ReferralCounts{Level1: len(l1), Level2: len(l2), Level3: len(l3)}, nil
}

// --- ledger.Store ---

func (m *MemStore) GetAccount(ctx context.Context, userID int64) (*accounts.Account, error) {
	return m.GetByUserID(ctx, userID)
}

func (m *MemStore) CreateInvestment(_ context.Context, inv *ledger.Investment, expect accounts.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[inv.UserID]
	if !ok {
		return common.ErrAccountNotFound
	}
	if a.State != expect {
		return common.ErrStateExpired
	}
	if a.MainBalance.LessThan(inv.Amount) {
		return common.ErrInsufficientFunds
	}
	a.MainBalance = a.MainBalance.Sub(inv.Amount)
	a.TotalInvested = a.TotalInvested.Add(inv.Amount)
	a.State, a.StateContext = accounts.StateNone, json.RawMessage("{}")

	m.nextID++
	inv.ID = m.nextID
	inv.Status = ledger.InvestmentRunning
	cp := *inv
	m.investments[inv.ID] = &cp
	return nil
}

func (m *MemStore) RunningInvestments(_ context.Context, userID int64) ([]*ledger.Investment, error) {
	return m.filterInvestments(func(inv *ledger.Investment) bool {
		return inv.UserID == userID && inv.Status == ledger.InvestmentRunning
	}), nil
}

func (m *MemStore) DueInvestments(_ context.Context, userID int64, now time.Time) ([]*ledger.Investment, error) {
	return m.filterInvestments(func(inv *ledger.Investment) bool {
		return inv.UserID == userID && inv.Status == ledger.InvestmentRunning && !inv.MaturesAt.After(now)
	}), nil
}

func (m *MemStore) filterInvestments(keep func(*ledger.Investment) bool) []*ledger.Investment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.Investment
	for _, inv := range m.investments {
		if keep(inv) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaturesAt.Before(out[j].MaturesAt) })
	return out
}

func (m *MemStore) CompleteInvestment(_ context.Context, investmentID int64, now time.Time) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.investments[investmentID]
	if !ok || inv.Status != ledger.InvestmentRunning || inv.MaturesAt.After(now) {
		return nil, common.ErrAlreadyProcessed
	}
	a := m.accounts[inv.UserID]
	inv.Status = ledger.InvestmentCompleted
	a.MainBalance = a.MainBalance.Add(inv.Payout())
	return m.insertTx(&ledger.Transaction{
		UserID: inv.UserID,
		Type:   ledger.TxInvestmentProfit,
		Amount: inv.Payout(),
		Status: ledger.TxCompleted,
	}), nil
}

func (m *MemStore) CreditReferral(_ context.Context, c ledger.ReferralCredit) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailCredit[c.ReferrerID]; err != nil {
		return nil, err
	}
	a, ok := m.accounts[c.ReferrerID]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	a.MainBalance = a.MainBalance.Add(c.Amount)
	a.ReferralEarnings = a.ReferralEarnings.Add(c.Amount)
	from, level := c.FromUserID, c.Level
	return m.insertTx(&ledger.Transaction{
		UserID:     c.ReferrerID,
		Type:       ledger.TxReferralBonus,
		Amount:     c.Amount,
		Status:     ledger.TxCompleted,
		FromUserID: &from,
		Level:      &level,
	}), nil
}

func (m *MemStore) UnlockBonus(_ context.Context, userID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return decimal.Zero, common.ErrAccountNotFound
	}
	if !a.BonusBalance.IsPositive() {
		return decimal.Zero, nil
	}
	hasRunning := false
	for _, inv := range m.investments {
		if inv.UserID == userID && inv.Status == ledger.InvestmentRunning {
			hasRunning = true
			break
		}
	}
	if !hasRunning {
		return decimal.Zero, nil
	}
	moved := a.BonusBalance
	a.MainBalance = a.MainBalance.Add(moved)
	a.BonusBalance = decimal.Zero
	m.insertTx(&ledger.Transaction{UserID: userID, Type: ledger.TxBonusUnlock, Amount: moved, Status: ledger.TxCompleted})
	return moved, nil
}

func (m *MemStore) CreateWithdrawal(_ context.Context, userID int64, amount decimal.Decimal, expect accounts.State) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	if a.State != expect {
		return nil, common.ErrStateExpired
	}
	if !a.HasWallet() {
		return nil, common.ErrWalletNotConfigured
	}
	if a.MainBalance.LessThan(amount) {
		return nil, common.ErrInsufficientFunds
	}
	a.MainBalance = a.MainBalance.Sub(amount)
	a.State, a.StateContext = accounts.StateNone, json.RawMessage("{}")
	addr, network := a.Wallet()
	return m.insertTx(&ledger.Transaction{
		UserID:        userID,
		Type:          ledger.TxWithdrawal,
		Amount:        amount,
		Status:        ledger.TxPending,
		WalletAddress: &addr,
		WalletNetwork: &network,
	}), nil
}

func (m *MemStore) CreateDeposit(_ context.Context, req ledger.DepositRequest) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[req.UserID]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	if a.State != req.Expect {
		return nil, common.ErrStateExpired
	}
	if req.ExternalRef != nil {
		for _, t := range m.txs {
			if t.ExternalRef != nil && *t.ExternalRef == *req.ExternalRef {
				return nil, common.ErrAlreadyProcessed
			}
		}
	}

	// ID резервируем заранее, чтобы при ошибке Build ничего не записать
	id := m.nextID + 1
	next, raw := accounts.StateNone, json.RawMessage("{}")
	if req.Next != nil {
		built, err := req.Next.Build(id)
		if err != nil {
			return nil, err
		}
		next, raw = req.Next.State, built
	}

	t := m.insertTx(&ledger.Transaction{
		UserID:      req.UserID,
		Type:        ledger.TxDeposit,
		Amount:      req.Amount,
		Status:      ledger.TxPending,
		ExternalRef: req.ExternalRef,
	})
	a.State, a.StateContext = next, normalize(raw)
	return t, nil
}

func (m *MemStore) GetTransaction(_ context.Context, id int64) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return nil, common.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemStore) FindByExternalRef(_ context.Context, ref string) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.ExternalRef != nil && *t.ExternalRef == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrTransactionNotFound
}

func (m *MemStore) Settle(_ context.Context, txID int64, typ ledger.TxType, outcome ledger.Settlement) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[txID]
	if !ok || t.Type != typ {
		return nil, common.ErrTransactionNotFound
	}
	if t.Status != ledger.TxPending {
		return nil, common.ErrAlreadyProcessed
	}
	a := m.accounts[t.UserID]

	switch {
	case typ == ledger.TxDeposit && outcome == ledger.SettleApprove:
		t.Status = ledger.TxCompleted
		a.MainBalance = a.MainBalance.Add(t.Amount)
	case typ == ledger.TxDeposit:
		t.Status = ledger.TxFailed
	case typ == ledger.TxWithdrawal && outcome == ledger.SettleApprove:
		t.Status = ledger.TxCompleted
		a.TotalWithdrawn = a.TotalWithdrawn.Add(t.Amount)
	default:
		t.Status = ledger.TxFailed
		a.MainBalance = a.MainBalance.Add(t.Amount)
	}
	t.UpdatedAt = m.clock()
	cp := *t
	return &cp, nil
}

func (m *MemStore) Adjust(_ context.Context, userID int64, delta decimal.Decimal) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	if a.MainBalance.Add(delta).IsNegative() {
		return nil, common.ErrInsufficientFunds
	}
	a.MainBalance = a.MainBalance.Add(delta)
	typ := ledger.TxAdminCredit
	if delta.IsNegative() {
		typ = ledger.TxAdminDebit
	}
	return m.insertTx(&ledger.Transaction{UserID: userID, Type: typ, Amount: delta.Abs(), Status: ledger.TxCompleted}), nil
}

func (m *MemStore) History(_ context.Context, userID int64, limit int) ([]*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.Transaction
	for _, t := range m.txs {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) PendingStats(_ context.Context) (ledger.PendingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := ledger.PendingStats{WithdrawalsTotal: decimal.Zero, DepositsTotal: decimal.Zero}
	for _, t := range m.txs {
		if t.Status != ledger.TxPending {
			continue
		}
		switch t.Type {
		case ledger.TxWithdrawal:
			s.Withdrawals++
			s.WithdrawalsTotal = s.WithdrawalsTotal.Add(t.Amount)
		case ledger.TxDeposit:
			s.Deposits++
			s.DepositsTotal = s.DepositsTotal.Add(t.Amount)
		}
	}
	return s, nil
}

// insertTx вызывается под m.mu.
func (m *MemStore) insertTx(t *ledger.Transaction) *ledger.Transaction {
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = m.clock()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.txs[t.ID] = &cp
	return t
}

func copyAccount(a *accounts.Account) *accounts.Account {
	cp := *a
	if a.WalletAddress != nil {
		v := *a.WalletAddress
		cp.WalletAddress = &v
	}
	if a.WalletNetwork != nil {
		v := *a.WalletNetwork
		cp.WalletNetwork = &v
	}
	if a.ReferrerUserID != nil {
		v := *a.ReferrerUserID
		cp.ReferrerUserID = &v
	}
	cp.StateContext = append(json.RawMessage(nil), a.StateContext...)
	return &cp
}

func normalize(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return append(json.RawMessage(nil), raw...)
}
