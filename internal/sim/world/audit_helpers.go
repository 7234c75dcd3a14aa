package world

func (w *World) auditEvent(tick uint64, actor, action, ref string, ok bool, code, reason string) {
	if w.auditLogger == nil {
		return
	}
	if err := w.auditLogger.WriteAudit(AuditEntry{
		Tick:   tick,
		Actor:  actor,
		Action: action,
		Ref:    ref,
		OK:     ok,
		Code:   code,
		Reason: reason,
	}); err != nil {
		w.logf("audit write: %v", err)
	}
}

func (w *World) tradeLog(e TradeLogEntry) {
	if w.tradeLogger == nil {
		return
	}
	if err := w.tradeLogger.WriteTrade(e); err != nil {
		w.logf("trade log write: %v", err)
	}
}
