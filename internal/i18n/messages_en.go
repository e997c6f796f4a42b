package i18n

var messagesEN = map[string]string{
	// кнопки
	"btn.invest":         "💼 Make investment",
	"btn.my_investments": "📈 My investments",
	"btn.balance":        "💰 Balance",
	"btn.deposit":        "➕ Deposit",
	"btn.withdraw":       "➖ Withdraw",
	"btn.referral":       "👥 Referral program",
	"btn.transactions":   "📜 Transactions",
	"btn.faq":            "❓ FAQ",
	"btn.support":        "🆘 Support",
	"btn.cancel":         "❌ Cancel",
	"btn.back":           "⬅️ Back",
	"btn.paid":           "✅ I have paid",
	"btn.pay":            "💳 Pay",
	"btn.plan":           "Plan %d: %s%% / %s",

	// общие
	"choose_language":  "🌐 Choose your language:",
	"language_set":     "✅ Language set to English.",
	"welcome":          "👋 Welcome, %s!\n\nGrow your balance with our investment plans and earn from referrals on 3 levels.\n🎁 Welcome bonus: %s (unlocks after your first investment).",
	"welcome_back":     "👋 Welcome back, %s!",
	"main_menu":        "🏠 Main menu",
	"action_canceled":  "❌ Action canceled.",
	"unknown_input":    "🤔 I didn't understand that. Use the menu below.",
	"not_registered":   "Please press /start first.",
	"help":             "Commands:\n/start — main menu\n/cancel — cancel the current action",
	"rate_limited":     "⏳ Too many requests, slow down a little.",

	// тарифы и инвестиции
	"plans.header":        "📊 Investment plans:\n",
	"plans.item":          "%d. %s%% profit after %s (min %s, max %s)",
	"invest.enter_amount": "📊 Plan %d: %s%% profit after %s.\nMin %s, max %s.\nYour balance: %s\n\nEnter the amount to invest:",
	"invest.success":      "✅ Invested %s in plan %d.\nExpected profit: %s\nMatures: %s",
	"investments.empty":   "You have no active investments.",
	"investments.header":  "📈 Active investments:\n",
	"investments.item":    "• Plan %d: %s → +%s, %s left",
	"investments.matured": "🎉 %d investment(s) matured, %s credited to your balance.",

	// баланс и рефералы
	"balance":              "💰 Main balance: %s\n🎁 Bonus balance: %s\n📈 Invested: %s\n📤 Withdrawn: %s",
	"referral":             "👥 Referral program\n\nYour link:\n%s\n\nLevel 1 (%s%%): %d\nLevel 2 (%s%%): %d\nLevel 3 (%s%%): %d\n\n💵 Earned: %s",
	"balance.credited":     "💰 Your balance was credited with %s.",
	"balance.debited":      "💸 %s was debited from your balance.",
	"referral.bonus":       "🎉 Level %d referral bonus: %s",
	"faq":                  "❓ FAQ\n\nProfit and principal are credited to your main balance when a plan matures.\nMinimum deposit: %s. Minimum withdrawal: %s.\nWithdrawals are reviewed manually.",
	"faq.link":             "\n\nMore: %s",
	"support":              "🆘 Support: @%s",
	"bonus.unlocked":       "🎁 Your bonus %s is now available on the main balance.",

	// депозит
	"deposit.enter_amount": "➕ Enter the deposit amount in USD (minimum %s):",
	"deposit.invoice":      "💳 Invoice for %s created.\nPay with the button below or send %s %s to:\n%s",
	"deposit.manual":       "💳 Send %s USDT to the wallet below, then press \"I have paid\".\n\n%s",
	"deposit.paid_sent":    "⏳ Payment submitted. The administrator will confirm it shortly.",
	"deposit.paid_again":   "⏳ Your payment is already waiting for confirmation.",
	"deposit.press_paid":   "💳 After the transfer press \"I have paid\" or cancel the deposit.",
	"deposit.api_error":    "⚠️ Payment service is unavailable. Try again later or cancel.",
	"deposit.confirmed":    "✅ Deposit of %s confirmed and credited.",
	"deposit.rejected":     "❌ Deposit of %s was not confirmed.",

	// вывод
	"withdraw.min_balance":    "Minimum withdrawal is %s. Your balance: %s.",
	"withdraw.enter_wallet":   "📤 Send your USDT wallet address (TRC20 or BEP20):",
	"withdraw.choose_network": "Select the network for %s:",
	"withdraw.wallet_saved":   "✅ Wallet saved: %s (%s)",
	"withdraw.enter_amount":   "📤 Enter the amount to withdraw.\nAvailable: %s (minimum %s)\nWallet: %s (%s)",
	"withdraw.requested":      "✅ Withdrawal request #%d for %s submitted. Wait for approval.",
	"withdraw.approved":       "✅ Withdrawal #%d for %s approved and sent.",
	"withdraw.rejected":       "❌ Withdrawal #%d for %s rejected. Funds returned to your balance.",

	// история
	"tx.empty":  "No transactions yet.",
	"tx.header": "📜 Last transactions:\n",
	"tx.item":   "%s %s %s — %s",

	"tx.type.deposit":           "Deposit",
	"tx.type.withdrawal":        "Withdrawal",
	"tx.type.referral_bonus":    "Referral bonus",
	"tx.type.investment_profit": "Investment payout",
	"tx.type.admin_credit":      "Credit",
	"tx.type.admin_debit":       "Debit",
	"tx.type.bonus_unlock":      "Bonus unlock",
	"tx.status.pending":         "⏳",
	"tx.status.completed":       "✅",
	"tx.status.failed":          "❌",

	// ошибки
	"err.invalid_amount":   "⚠️ Enter a positive number, e.g. 25 or 12.5",
	"err.below_minimum":    "⚠️ The minimum is %s.",
	"err.above_maximum":    "⚠️ The maximum is %s.",
	"err.insufficient":     "⚠️ Insufficient balance. Available: %s",
	"err.unknown_plan":     "⚠️ This plan does not exist.",
	"err.invalid_wallet":   "⚠️ Invalid wallet address. Send a TRC20 (T...) or BEP20 (0x...) address.",
	"err.network_mismatch": "⚠️ This address does not belong to the selected network.",
	"err.wallet_missing":   "⚠️ Set a withdrawal wallet first.",
	"err.expired":          "⌛ This action has expired. Start again from the menu.",
	"err.generic":          "⚠️ Something went wrong. Please try again.",
}
