package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ventasvoz/internal/domain"
	"ventasvoz/internal/extract"
	"ventasvoz/internal/session"
	"ventasvoz/internal/store"
)

// HandleTurn runs one conversational turn: answer a pending disambiguation if
// there is one, otherwise try the direct commands, otherwise hand the
// utterance to the oracle and record the extracted sale. The returned reply
// always carries the updated session for the caller to thread into the next
// turn. An error return means infrastructure failed, not that the utterance
// was refused; refusals come back as clarification or rejected replies.
func (e *Engine) HandleTurn(ctx context.Context, tenantID string, req domain.TurnRequest) (domain.TurnReply, error) {
	now := time.Now().UTC()
	utterance := strings.TrimSpace(req.Utterance)
	sess := req.Session

	if utterance == "" {
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnClarification,
			Message: "No escuché nada. ¿Qué querés registrar?",
		}, now), nil
	}
	sess = session.Append(sess, "user", utterance, now)

	if sess.Pending != nil {
		// Only a bare list answer ("la 2") consumes the pending map; a
		// longer utterance that happens to mention a number is a new
		// instruction and keeps the list pending.
		if _, ok := session.ParseOrdinalAnswer(utterance); ok {
			return e.resolvePending(ctx, tenantID, sess, utterance, now)
		}
	}

	if cmd, ok := detectCommand(utterance); ok {
		switch cmd.kind {
		case cmdCancel:
			return e.handleCancel(ctx, tenantID, sess, cmd, now)
		case cmdEditTotal:
			return e.handleEditTotal(ctx, tenantID, sess, cmd, now)
		}
	}

	return e.handleExtraction(ctx, tenantID, sess, utterance, now)
}

func (e *Engine) resolvePending(ctx context.Context, tenantID string, sess domain.SessionContext, utterance string, now time.Time) (domain.TurnReply, error) {
	saleID := session.ResolveOrdinal(sess, utterance, now, e.disambigTTL)
	if saleID == "" {
		sess = session.ClearDisambiguation(sess)
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnClarification,
			Message: "Ese número no está en la lista, o la lista ya venció. Pedime de nuevo las ventas del día.",
		}, now), nil
	}
	return e.cancelByID(ctx, tenantID, sess, saleID, now)
}

func (e *Engine) handleCancel(ctx context.Context, tenantID string, sess domain.SessionContext, cmd command, now time.Time) (domain.TurnReply, error) {
	if cmd.ordinal > 0 {
		sales, err := e.repo.ListSalesByDay(ctx, tenantID, now)
		if err != nil {
			return domain.TurnReply{}, err
		}
		for _, s := range sales {
			if s.DailyOrdinal == cmd.ordinal {
				return e.cancelByID(ctx, tenantID, sess, s.ID, now)
			}
		}
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnClarification,
			Message: fmt.Sprintf("No encontré la venta #%d de hoy.", cmd.ordinal),
		}, now), nil
	}

	if sess.LastSaleID != "" {
		return e.cancelByID(ctx, tenantID, sess, sess.LastSaleID, now)
	}

	// No referent: list today's sales and ask which one.
	sales, err := e.repo.ListSalesByDay(ctx, tenantID, now)
	if err != nil {
		return domain.TurnReply{}, err
	}
	if len(sales) == 0 {
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnClarification,
			Message: "No hay ventas registradas hoy para anular.",
		}, now), nil
	}

	options := make([]domain.DisambiguationOption, 0, len(sales))
	ids := make([]string, 0, len(sales))
	lines := make([]string, 0, len(sales))
	for i, s := range sales {
		options = append(options, domain.DisambiguationOption{
			Ordinal:    i + 1,
			SaleID:     s.ID,
			Total:      s.Total,
			OccurredAt: s.OccurredAt,
		})
		ids = append(ids, s.ID)
		lines = append(lines, fmt.Sprintf("%d) venta #%d por $%s", i+1, s.DailyOrdinal, s.Total.StringFixed(2)))
	}
	sess = session.OfferDisambiguation(sess, now.Format("2006-01-02"), ids, now)
	return e.reply(sess, domain.TurnReply{
		Kind:    domain.TurnDisambiguate,
		Message: "¿Cuál querés anular? " + strings.Join(lines, ", "),
		Options: options,
	}, now), nil
}

func (e *Engine) cancelByID(ctx context.Context, tenantID string, sess domain.SessionContext, saleID string, now time.Time) (domain.TurnReply, error) {
	sale, err := e.CancelSale(ctx, tenantID, saleID)
	if errors.Is(err, store.ErrNotFound) {
		sess = session.ClearDisambiguation(sess)
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnClarification,
			Message: "Esa venta no existe o ya estaba anulada.",
		}, now), nil
	}
	if err != nil {
		return domain.TurnReply{}, err
	}
	sess = session.RecordCancellation(sess)
	return e.reply(sess, domain.TurnReply{
		Kind:    domain.TurnSaleCancelled,
		Message: fmt.Sprintf("Anulada la venta #%d por $%s.", sale.DailyOrdinal, sale.Total.StringFixed(2)),
		Sale:    sale,
	}, now), nil
}

func (e *Engine) handleEditTotal(ctx context.Context, tenantID string, sess domain.SessionContext, cmd command, now time.Time) (domain.TurnReply, error) {
	if sess.LastSaleID == "" {
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnClarification,
			Message: "¿El total de cuál venta? No tengo una venta reciente en esta conversación.",
			Reason:  ErrAmbiguousReference.Error(),
		}, now), nil
	}
	total := cmd.total
	sale, err := e.EditSale(ctx, tenantID, sess.LastSaleID, domain.SaleUpdate{Total: &total})
	if errors.Is(err, store.ErrVoided) {
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnClarification,
			Message: "Esa venta está anulada, no se puede modificar.",
		}, now), nil
	}
	if errors.Is(err, store.ErrNotFound) {
		sess = session.RecordCancellation(sess)
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnClarification,
			Message: "No encontré esa venta.",
		}, now), nil
	}
	if err != nil {
		return domain.TurnReply{}, err
	}
	return e.reply(sess, domain.TurnReply{
		Kind:    domain.TurnSaleUpdated,
		Message: fmt.Sprintf("Listo, la venta #%d ahora tiene un total de $%s.", sale.DailyOrdinal, sale.Total.StringFixed(2)),
		Sale:    sale,
	}, now), nil
}

func (e *Engine) handleExtraction(ctx context.Context, tenantID string, sess domain.SessionContext, utterance string, now time.Time) (domain.TurnReply, error) {
	snapshot, err := e.Snapshot(ctx, tenantID)
	if err != nil {
		return domain.TurnReply{}, err
	}

	raw, err := e.extractor.Extract(ctx, utterance, snapshot)
	if err != nil {
		// Fail closed: an oracle that cannot answer records nothing.
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnRejected,
			Message: "No pude interpretar eso como una venta.",
			Reason:  err.Error(),
		}, now), nil
	}

	normalized, err := extract.Validate(raw, now)
	if errors.Is(err, extract.ErrRejected) {
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnRejected,
			Message: "No registré nada: " + rejectionDetail(err),
			Reason:  err.Error(),
		}, now), nil
	}
	if err != nil {
		return domain.TurnReply{}, err
	}

	sale, err := e.CreateSale(ctx, tenantID, normalized)
	if errors.Is(err, ErrPaymentMethodUnresolved) {
		return e.reply(sess, domain.TurnReply{
			Kind:    domain.TurnRejected,
			Message: "No reconozco ese medio de pago, no registré la venta.",
			Reason:  err.Error(),
		}, now), nil
	}
	if err != nil {
		return domain.TurnReply{}, err
	}

	sess = session.RecordNewSale(sess, sale.ID)
	return e.reply(sess, domain.TurnReply{
		Kind:    domain.TurnSaleRecorded,
		Message: recordedMessage(sale),
		Sale:    sale,
	}, now), nil
}

// reply stamps the outgoing message into the session window and attaches the
// session to the reply.
func (e *Engine) reply(sess domain.SessionContext, r domain.TurnReply, now time.Time) domain.TurnReply {
	r.Session = session.Append(sess, "assistant", r.Message, now)
	return r
}

func recordedMessage(sale *domain.Sale) string {
	parts := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		parts = append(parts, fmt.Sprintf("%s %s", trimQuantity(item), item.ProductLabel))
	}
	msg := fmt.Sprintf("Registrada la venta #%d: %s por $%s", sale.DailyOrdinal, strings.Join(parts, ", "), sale.Total.StringFixed(2))
	if len(sale.Payments) == 1 {
		msg += " con " + sale.Payments[0].MethodName
	} else if len(sale.Payments) > 1 {
		pays := make([]string, 0, len(sale.Payments))
		for _, p := range sale.Payments {
			pays = append(pays, fmt.Sprintf("$%s %s", p.Amount.StringFixed(2), p.MethodName))
		}
		msg += " (" + strings.Join(pays, " + ") + ")"
	}
	return msg + "."
}

func trimQuantity(item domain.SaleItem) string {
	q := item.Quantity.String()
	if item.UnitLabel != "" {
		return q + " " + item.UnitLabel
	}
	return q
}

// rejectionDetail strips the sentinel prefix so the spoken message carries
// just the human-readable part.
func rejectionDetail(err error) string {
	msg := err.Error()
	if cut, ok := strings.CutPrefix(msg, extract.ErrRejected.Error()+": "); ok {
		return cut
	}
	return msg
}
