// Package keyboards — клавиатуры бота и словарь callback_data.
// actions.go разбирает и собирает токены inline-кнопок.
package keyboards

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind задаёт вид действия inline-кнопки.
type Kind string

const (
	ActSetLanguage     Kind = "set_lang_"
	ActBackToMain      Kind = "back_to_main"
	ActShowPlans       Kind = "show_invest_plans"
	ActInvestPlan      Kind = "invest_plan_"
	ActCancel          Kind = "cancel_action"
	ActDeposit         Kind = "deposit"
	ActWithdraw        Kind = "withdraw"
	ActSetNetwork      Kind = "set_network_"
	ActTransactions    Kind = "transactions"
	ActDepositPaid     Kind = "deposit_paid_"
	ActAdminApprove    Kind = "admin_approve_"
	ActAdminReject     Kind = "admin_reject_"
	ActAdminDepApprove Kind = "admin_dep_approve_"
	ActAdminDepReject  Kind = "admin_dep_reject_"
)

// Action представляет разобранный токен кнопки.
type Action struct {
	Kind Kind
	Arg  string // код языка, сеть
	ID   int64  // номер тарифа, ID транзакции
}

// Токены с параметром. Порядок важен: длинные префиксы раньше коротких.
var prefixed = []Kind{
	ActAdminDepApprove,
	ActAdminDepReject,
	ActAdminApprove,
	ActAdminReject,
	ActDepositPaid,
	ActInvestPlan,
	ActSetNetwork,
	ActSetLanguage,
}

var exact = map[string]Kind{
	string(ActBackToMain):   ActBackToMain,
	string(ActShowPlans):    ActShowPlans,
	string(ActCancel):       ActCancel,
	string(ActDeposit):      ActDeposit,
	string(ActWithdraw):     ActWithdraw,
	string(ActTransactions): ActTransactions,
}

// ParseAction разбирает callback_data. Неизвестный или битый токен → false.
func ParseAction(data string) (Action, bool) {
	if k, ok := exact[data]; ok {
		return Action{Kind: k}, true
	}
	for _, k := range prefixed {
		if !strings.HasPrefix(data, string(k)) {
			continue
		}
		rest := strings.TrimPrefix(data, string(k))
		if rest == "" {
			return Action{}, false
		}
		switch k {
		case ActSetLanguage, ActSetNetwork:
			return Action{Kind: k, Arg: rest}, true
		default:
			id, err := strconv.ParseInt(rest, 10, 64)
			if err != nil || id <= 0 {
				return Action{}, false
			}
			return Action{Kind: k, ID: id}, true
		}
	}
	return Action{}, false
}

// IsAdmin сообщает, что действие из админской панели.
func (a Action) IsAdmin() bool {
	switch a.Kind {
	case ActAdminApprove, ActAdminReject, ActAdminDepApprove, ActAdminDepReject:
		return true
	}
	return false
}

// Data собирает callback_data для действия.
func (a Action) Data() string {
	switch a.Kind {
	case ActSetLanguage, ActSetNetwork:
		return string(a.Kind) + a.Arg
	case ActInvestPlan, ActDepositPaid, ActAdminApprove, ActAdminReject, ActAdminDepApprove, ActAdminDepReject:
		return fmt.Sprintf("%s%d", a.Kind, a.ID)
	}
	return string(a.Kind)
}
