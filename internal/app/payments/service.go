package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/metrics"
	"checkout/internal/outbox"
	"checkout/internal/repository/notifications_repo"
	"checkout/internal/repository/orders_repo"
	"checkout/internal/repository/outbox_repo"
	"checkout/internal/repository/payments_repo"
	"checkout/internal/util"
)

type PaymentService interface {
	InitializePayment(ctx context.Context, orderID string) (*InitResult, error)
	HandleNotification(ctx context.Context, n Notification) (Outcome, error)
	Reconcile(ctx context.Context, transactionID string) (*StatusView, error)
	GetPaymentStatus(ctx context.Context, transactionID string) (*StatusView, error)
	CheckPaymentStatus(ctx context.Context, transactionID string) (*domain.VerifiedPayment, error)
}

type paymentService struct {
	db               domain.Querier
	tx               domain.Transactor
	gateway          Gateway
	orderRepo        orders_repo.OrderRepository
	paymentRepo      payments_repo.PaymentRepository
	notificationRepo notifications_repo.NotificationRepository
	outboxRepo       outbox_repo.OutboxRepository
	topics           outbox.Topics
	settings         Settings
	metrics          *metrics.Metrics
	logger           *zap.Logger

	now              func() time.Time
	newTransactionID func(prefix string, now time.Time) string
}

func NewPaymentService(
	db domain.Querier,
	tx domain.Transactor,
	gateway Gateway,
	orderRepo orders_repo.OrderRepository,
	paymentRepo payments_repo.PaymentRepository,
	notificationRepo notifications_repo.NotificationRepository,
	outboxRepo outbox_repo.OutboxRepository,
	topics outbox.Topics,
	settings Settings,
	m *metrics.Metrics,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		db:               db,
		tx:               tx,
		gateway:          gateway,
		orderRepo:        orderRepo,
		paymentRepo:      paymentRepo,
		notificationRepo: notificationRepo,
		outboxRepo:       outboxRepo,
		topics:           topics,
		settings:         settings,
		metrics:          m,
		logger:           logger,
		now:              time.Now,
		newTransactionID: util.GenerateTransactionID,
	}
}

// InitializePayment opens a provider checkout session for a pending order.
// The payment row is committed before the provider is called, so a session
// the provider did open can always be matched to a local payment. Any older
// pending attempt for the order is superseded.
func (s *paymentService) InitializePayment(ctx context.Context, orderID string) (*InitResult, error) {
	if !util.IsUUID(orderID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}

	var (
		order   *domain.Order
		payment *domain.Payment
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		order, err = s.orderRepo.GetByIDForUpdateTx(ctx, q, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: order %s is %s", domain.ErrOrderNotPayable, order.OrderNumber, order.Status)
		}
		if err := s.supersedePendingTx(ctx, q, order.ID); err != nil {
			return err
		}

		now := s.now()
		payment = &domain.Payment{
			ID:            util.GenerateUUID(),
			OrderID:       order.ID,
			TransactionID: s.newTransactionID(s.settings.TransactionPrefix, now),
			Amount:        order.Total,
			Currency:      s.settings.Currency,
			Status:        domain.PaymentStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return s.paymentRepo.CreateTx(ctx, q, payment)
	})
	if err != nil {
		s.metrics.PaymentInitializations.WithLabelValues(initOutcome(err)).Inc()
		if !errors.Is(err, domain.ErrOrderNotFound) && !errors.Is(err, domain.ErrOrderNotPayable) {
			s.logger.Error("Failed to create payment", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}

	session, err := s.gateway.Initialize(ctx, domain.PaymentInitRequest{
		TransactionID: payment.TransactionID,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		Customer:      order.Customer,
		CustomerID:    order.UserID,
		Address:       order.ShippingAddress,
		City:          order.ShippingCity,
	})
	if err != nil {
		// the payment stays pending; a retry supersedes it
		s.metrics.PaymentInitializations.WithLabelValues(initOutcome(err)).Inc()
		s.logger.Error("Payment provider rejected initialization",
			zap.String("order_id", order.ID),
			zap.String("transaction_id", payment.TransactionID),
			zap.Error(err))
		return nil, err
	}

	// the order may have been cancelled or the payment superseded while the
	// provider was called, so only the session fields are written back
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		current, err := s.orderRepo.GetByIDForUpdateTx(ctx, q, order.ID)
		if err != nil {
			return err
		}
		fresh, err := s.paymentRepo.GetByTransactionIDForUpdateTx(ctx, q, payment.TransactionID)
		if err != nil {
			return err
		}
		if current.Status != domain.OrderStatusPending || fresh.Status != domain.PaymentStatusPending {
			return fmt.Errorf("%w: order %s is %s, payment %s is %s", domain.ErrOrderNotPayable,
				current.OrderNumber, current.Status, fresh.TransactionID, fresh.Status)
		}
		fresh.PaymentToken = session.PaymentToken
		fresh.PaymentURL = session.PaymentURL
		fresh.UpdatedAt = s.now()
		if err := s.paymentRepo.UpdateTx(ctx, q, fresh); err != nil {
			return err
		}
		payment = fresh
		return nil
	})
	if err != nil {
		s.metrics.PaymentInitializations.WithLabelValues(initOutcome(err)).Inc()
		if errors.Is(err, domain.ErrOrderNotPayable) {
			s.logger.Warn("Payment session discarded, order changed during initialization",
				zap.String("transaction_id", payment.TransactionID), zap.Error(err))
		} else {
			s.logger.Error("Failed to store payment session",
				zap.String("transaction_id", payment.TransactionID), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.PaymentInitializations.WithLabelValues("ok").Inc()
	s.logger.Info("Payment initialized",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", payment.TransactionID),
		zap.Int64("amount", payment.Amount))

	return &InitResult{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		PaymentURL:    payment.PaymentURL,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
	}, nil
}

func (s *paymentService) supersedePendingTx(ctx context.Context, q domain.Querier, orderID string) error {
	pending, err := s.paymentRepo.ListPendingByOrderIDForUpdateTx(ctx, q, orderID)
	if err != nil {
		return err
	}
	now := s.now()
	for i := range pending {
		p := &pending[i]
		if err := p.MarkFailed("superseded", now); err != nil {
			return err
		}
		if err := s.paymentRepo.UpdateTx(ctx, q, p); err != nil {
			return err
		}
		if err := s.emitPaymentEvent(ctx, q, p, now); err != nil {
			return err
		}
		s.logger.Info("Pending payment superseded",
			zap.String("order_id", orderID), zap.String("transaction_id", p.TransactionID))
	}
	return nil
}

// HandleNotification records the push in the audit log and reconciles the
// transaction against the provider. The audit row is written outside the
// reconciliation transaction so failed attempts stay visible.
func (s *paymentService) HandleNotification(ctx context.Context, n Notification) (Outcome, error) {
	if n.Source == "" {
		n.Source = SourceWebhook
	}
	audit := &domain.PaymentNotification{
		ID:            util.GenerateUUID(),
		TransactionID: n.TransactionID,
		Source:        n.Source,
		Payload:       n.Payload,
		Status:        domain.NotificationStatusNew,
		ReceivedAt:    s.now(),
	}
	if err := s.notificationRepo.CreateTx(ctx, s.db, audit); err != nil {
		s.logger.Error("Failed to record payment notification", zap.String("transaction_id", n.TransactionID), zap.Error(err))
	}

	var (
		outcome Outcome
		err     error
	)
	if n.TransactionID == "" {
		err = domain.ErrMissingTransactionID
	} else {
		outcome, err = s.reconcile(ctx, n.TransactionID)
	}

	status := notificationStatus(outcome, err)
	detail := string(outcome)
	if err != nil {
		detail = err.Error()
	}
	if uerr := s.notificationRepo.UpdateStatusTx(ctx, s.db, audit.ID, status, detail); uerr != nil {
		s.logger.Error("Failed to update payment notification", zap.String("notification_id", audit.ID), zap.Error(uerr))
	}

	label := string(outcome)
	if err != nil {
		label = notifyErrorLabel(err)
	}
	s.metrics.PaymentNotifications.WithLabelValues(label).Inc()

	return outcome, err
}

func (s *paymentService) reconcile(ctx context.Context, transactionID string) (Outcome, error) {
	payment, err := s.paymentRepo.GetByTransactionIDTx(ctx, s.db, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			s.logger.Warn("Notification for unknown transaction", zap.String("transaction_id", transactionID))
		}
		return "", err
	}

	verified, err := s.gateway.Check(ctx, transactionID)
	if err != nil {
		s.logger.Error("Failed to verify payment with provider", zap.String("transaction_id", transactionID), zap.Error(err))
		return "", err
	}

	var outcome Outcome
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		var err error
		outcome, err = s.applyVerificationTx(ctx, q, payment.OrderID, verified)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to reconcile payment", zap.String("transaction_id", transactionID), zap.Error(err))
		return "", err
	}
	if outcome == OutcomeAmountMismatch {
		return outcome, fmt.Errorf("%w: transaction %s reported %d %s",
			domain.ErrAmountMismatch, transactionID, verified.Amount, verified.Currency)
	}
	return outcome, nil
}

// applyVerificationTx locks the order before the payment, the same order the
// cancel path uses.
func (s *paymentService) applyVerificationTx(ctx context.Context, q domain.Querier, orderID string, v *domain.VerifiedPayment) (Outcome, error) {
	now := s.now()

	order, err := s.orderRepo.GetByIDForUpdateTx(ctx, q, orderID)
	if err != nil {
		return "", err
	}
	payment, err := s.paymentRepo.GetByTransactionIDForUpdateTx(ctx, q, v.TransactionID)
	if err != nil {
		return "", err
	}
	payment.RecordVerification(v, now)

	logger := s.logger.With(
		zap.String("transaction_id", payment.TransactionID),
		zap.String("order_id", order.ID),
		zap.String("provider_status", string(v.Status)))

	switch v.Status {
	case domain.ProviderStatusAccepted:
		return s.acceptTx(ctx, q, order, payment, v, now, logger)

	case domain.ProviderStatusRefused, domain.ProviderStatusCancelled:
		if payment.Status != domain.PaymentStatusPending {
			// never downgrade a completed payment
			logger.Info("Refusal for settled payment ignored", zap.String("payment_status", string(payment.Status)))
			return OutcomeUnchanged, s.paymentRepo.UpdateTx(ctx, q, payment)
		}
		reason := "provider reported " + string(v.Status)
		if v.Message != "" {
			reason += ": " + v.Message
		}
		if err := payment.MarkFailed(reason, now); err != nil {
			return "", err
		}
		if err := s.paymentRepo.UpdateTx(ctx, q, payment); err != nil {
			return "", err
		}
		if err := s.emitPaymentEvent(ctx, q, payment, now); err != nil {
			return "", err
		}
		logger.Info("Payment failed, order stays pending")
		return OutcomeFailed, nil

	default:
		logger.Warn("Unknown provider status, only metadata recorded")
		return OutcomeIgnored, s.paymentRepo.UpdateTx(ctx, q, payment)
	}
}

func (s *paymentService) acceptTx(ctx context.Context, q domain.Querier, order *domain.Order, payment *domain.Payment, v *domain.VerifiedPayment, now time.Time, logger *zap.Logger) (Outcome, error) {
	if v.Amount != payment.Amount || v.Amount != order.Total || v.Currency != payment.Currency {
		logger.Error("Provider amount does not match order",
			zap.Int64("reported_amount", v.Amount),
			zap.String("reported_currency", v.Currency),
			zap.Int64("payment_amount", payment.Amount),
			zap.Int64("order_total", order.Total))
		if payment.Status == domain.PaymentStatusPending {
			reason := fmt.Sprintf("amount mismatch: provider reported %d %s, expected %d %s",
				v.Amount, v.Currency, payment.Amount, payment.Currency)
			if err := payment.MarkFailed(reason, now); err != nil {
				return "", err
			}
			if err := s.emitPaymentEvent(ctx, q, payment, now); err != nil {
				return "", err
			}
		}
		return OutcomeAmountMismatch, s.paymentRepo.UpdateTx(ctx, q, payment)
	}

	if payment.Status == domain.PaymentStatusFailed {
		completed, err := s.completedSiblingTx(ctx, q, payment)
		if err != nil {
			return "", err
		}
		if completed != nil {
			// the order is already paid; this capture stays failed and must be refunded
			payment.FailureReason = "captured after payment " + completed.TransactionID + " completed, refund required"
			payment.UpdatedAt = now
			if err := s.paymentRepo.UpdateTx(ctx, q, payment); err != nil {
				return "", err
			}
			logger.Error("Second capture for an already paid order, needs a manual refund",
				zap.String("completed_transaction_id", completed.TransactionID),
				zap.Int64("amount", v.Amount))
			return OutcomeManualReview, nil
		}
		// a superseded attempt was captured after all; it wins over newer pending ones
		if err := s.supersedePendingTx(ctx, q, order.ID); err != nil {
			return "", err
		}
	}

	changed, err := payment.MarkCompleted(now)
	if err != nil {
		return "", err
	}
	if err := s.paymentRepo.UpdateTx(ctx, q, payment); err != nil {
		return "", err
	}
	if !changed {
		logger.Info("Duplicate acceptance, payment already completed")
		return OutcomeAlreadyCompleted, nil
	}
	if err := s.emitPaymentEvent(ctx, q, payment, now); err != nil {
		return "", err
	}

	if order.Status != domain.OrderStatusPending {
		logger.Warn("Payment captured for an order that is no longer pending, needs manual review",
			zap.String("order_status", string(order.Status)))
		return OutcomeManualReview, nil
	}

	from := order.Status
	if err := order.TransitionTo(domain.OrderStatusConfirmed, now); err != nil {
		return "", err
	}
	if err := s.orderRepo.UpdateStatusTx(ctx, q, order); err != nil {
		return "", err
	}
	msg, err := outbox.OrderStatusChanged(s.topics.OrderEvents, order, from, now)
	if err != nil {
		return "", err
	}
	if err := s.outboxRepo.CreateMessageTx(ctx, q, msg); err != nil {
		return "", err
	}
	s.metrics.OrderTransitions.WithLabelValues(string(from), string(order.Status)).Inc()

	logger.Info("Payment completed, order confirmed", zap.String("order_number", order.OrderNumber))
	return OutcomeCompleted, nil
}

func (s *paymentService) completedSiblingTx(ctx context.Context, q domain.Querier, payment *domain.Payment) (*domain.Payment, error) {
	all, err := s.paymentRepo.ListByOrderIDTx(ctx, q, payment.OrderID)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID != payment.ID && all[i].Status == domain.PaymentStatusCompleted {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (s *paymentService) emitPaymentEvent(ctx context.Context, q domain.Querier, p *domain.Payment, now time.Time) error {
	msg, err := outbox.PaymentStatusChanged(s.topics.PaymentEvents, p, now)
	if err != nil {
		return err
	}
	return s.outboxRepo.CreateMessageTx(ctx, q, msg)
}

// Reconcile re-runs verification for a transaction on operator request.
func (s *paymentService) Reconcile(ctx context.Context, transactionID string) (*StatusView, error) {
	if _, err := s.HandleNotification(ctx, Notification{TransactionID: transactionID, Source: SourceAdmin}); err != nil {
		return nil, err
	}
	return s.GetPaymentStatus(ctx, transactionID)
}

func (s *paymentService) GetPaymentStatus(ctx context.Context, transactionID string) (*StatusView, error) {
	if transactionID == "" {
		return nil, domain.ErrMissingTransactionID
	}
	payment, err := s.paymentRepo.GetByTransactionIDTx(ctx, s.db, transactionID)
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByIDTx(ctx, s.db, payment.OrderID)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		TransactionID: payment.TransactionID,
		PaymentStatus: payment.Status,
		FailureReason: payment.FailureReason,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		PaymentURL:    payment.PaymentURL,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		OrderStatus:   order.Status,
		UpdatedAt:     payment.UpdatedAt,
	}, nil
}

// CheckPaymentStatus asks the provider directly without changing local state.
func (s *paymentService) CheckPaymentStatus(ctx context.Context, transactionID string) (*domain.VerifiedPayment, error) {
	if transactionID == "" {
		return nil, domain.ErrMissingTransactionID
	}
	if _, err := s.paymentRepo.GetByTransactionIDTx(ctx, s.db, transactionID); err != nil {
		return nil, err
	}
	return s.gateway.Check(ctx, transactionID)
}

func notificationStatus(outcome Outcome, err error) domain.NotificationStatus {
	switch {
	case err != nil:
		return domain.NotificationStatusFailed
	case outcome == OutcomeIgnored || outcome == OutcomeAlreadyCompleted || outcome == OutcomeUnchanged:
		return domain.NotificationStatusIgnored
	default:
		return domain.NotificationStatusProcessed
	}
}

func notifyErrorLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingTransactionID):
		return "missing_transaction_id"
	case errors.Is(err, domain.ErrPaymentNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAmountMismatch):
		return string(OutcomeAmountMismatch)
	case errors.Is(err, domain.ErrGatewayTimeout), errors.Is(err, domain.ErrGateway):
		return "gateway_error"
	default:
		return "error"
	}
}

func initOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrOrderNotPayable):
		return "not_payable"
	case errors.Is(err, domain.ErrGatewayTimeout), errors.Is(err, domain.ErrGateway):
		return "gateway_error"
	default:
		return "error"
	}
}
