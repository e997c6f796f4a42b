package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverFromPanic вызывается через defer в обработчике апдейта.
// fields указывает, чей апдейт упал (user_id, update_id), и может быть nil.
//
//	defer middleware.RecoverFromPanic(log.Fields{"user_id": id})
func RecoverFromPanic(fields log.Fields) {
	r := recover()
	if r == nil {
		return
	}

	entry := log.WithFields(log.Fields{
		"component": "panic_recovery",
		"panic":     fmt.Sprintf("%v", r),
		"stack":     string(debug.Stack()),
	})
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error("ПАНИКА в обработчике апдейта, бот продолжает работу")
}
