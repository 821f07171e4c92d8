package service

import (
	"context"

	"github.com/safar/retail-ledger/internal/authz"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/safar/retail-ledger/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) logBooked(e models.Expense) {
	s.logger.Info("expense booked",
		zap.String("expense_id", e.ID),
		zap.String("source_kind", e.SourceKind),
		zap.String("source_id", e.SourceID),
		zap.String("category", e.Category),
		zap.String("amount", e.Amount.StringFixed(2)),
	)
}

func (s *Service) logWithdrawal(event, userID string, w models.Withdrawal) {
	s.logger.Info(event,
		zap.String("user_id", userID),
		zap.String("withdrawal_id", w.ID),
		zap.String("status", string(w.Status)),
	)
}

func (s *Service) RequestWithdrawal(ctx context.Context, actor authz.Actor, userID string, amount decimal.Decimal, source models.WithdrawalSource) (models.Withdrawal, error) {
	var w models.Withdrawal
	err := s.mutate(ctx, actor, authz.WithdrawalsOf(userID), authz.ActionCreate, func(u *store.UnitOfWork) error {
		var err error
		w, err = s.payouts.RequestWithdrawal(u, userID, amount, source)
		return err
	})
	if err != nil {
		return models.Withdrawal{}, err
	}
	s.logWithdrawal("withdrawal requested", userID, w)
	return w, nil
}

type withdrawalOp func(u *store.UnitOfWork, userID, id string) (models.Withdrawal, error)

func (s *Service) withdrawalStep(ctx context.Context, actor authz.Actor, action authz.Action, userID, id, event string, op withdrawalOp) (models.Withdrawal, error) {
	var w models.Withdrawal
	err := s.mutate(ctx, actor, authz.WithdrawalsOf(userID), action, func(u *store.UnitOfWork) error {
		var err error
		w, err = op(u, userID, id)
		return err
	})
	if err != nil {
		return models.Withdrawal{}, err
	}
	s.logWithdrawal(event, userID, w)
	return w, nil
}

func (s *Service) ApproveWithdrawal(ctx context.Context, actor authz.Actor, userID, id string) (models.Withdrawal, error) {
	return s.withdrawalStep(ctx, actor, authz.ActionApprove, userID, id, "withdrawal approved", s.payouts.ApproveWithdrawal)
}

func (s *Service) RejectWithdrawal(ctx context.Context, actor authz.Actor, userID, id string) (models.Withdrawal, error) {
	return s.withdrawalStep(ctx, actor, authz.ActionApprove, userID, id, "withdrawal rejected", s.payouts.RejectWithdrawal)
}

func (s *Service) MarkWithdrawalPaid(ctx context.Context, actor authz.Actor, userID, id string) (models.Withdrawal, error) {
	return s.withdrawalStep(ctx, actor, authz.ActionPay, userID, id, "withdrawal paid", s.payouts.MarkWithdrawalPaid)
}

func (s *Service) ConfirmWithdrawalReceived(ctx context.Context, actor authz.Actor, userID, id string) (models.Withdrawal, models.Expense, error) {
	var w models.Withdrawal
	var e models.Expense
	err := s.mutate(ctx, actor, authz.WithdrawalsOf(userID), authz.ActionConfirm, func(u *store.UnitOfWork) error {
		var err error
		w, e, err = s.payouts.ConfirmWithdrawalReceived(u, actor.ID, userID, id)
		return err
	})
	if err != nil {
		return models.Withdrawal{}, models.Expense{}, err
	}
	s.logWithdrawal("withdrawal received", userID, w)
	s.logBooked(e)
	return w, e, nil
}

func (s *Service) logCustomPayment(event, userID string, cp models.CustomPayment) {
	s.logger.Info(event,
		zap.String("user_id", userID),
		zap.String("custom_payment_id", cp.ID),
		zap.String("status", string(cp.Status)),
	)
}

func (s *Service) InitiateCustomPayment(ctx context.Context, actor authz.Actor, userID string, amount decimal.Decimal, description string) (models.CustomPayment, error) {
	var cp models.CustomPayment
	err := s.mutate(ctx, actor, authz.CustomPaymentsOf(userID), authz.ActionCreate, func(u *store.UnitOfWork) error {
		var err error
		cp, err = s.payouts.InitiateCustomPayment(u, actor.ID, userID, amount, description)
		return err
	})
	if err != nil {
		return models.CustomPayment{}, err
	}
	s.logCustomPayment("custom payment initiated", userID, cp)
	return cp, nil
}

type customPaymentOp func(u *store.UnitOfWork, actorID, userID, id string) (models.CustomPayment, error)

func (s *Service) customPaymentStep(ctx context.Context, actor authz.Actor, action authz.Action, userID, id, event string, op customPaymentOp) (models.CustomPayment, error) {
	var cp models.CustomPayment
	err := s.mutate(ctx, actor, authz.CustomPaymentsOf(userID), action, func(u *store.UnitOfWork) error {
		var err error
		cp, err = op(u, actor.ID, userID, id)
		return err
	})
	if err != nil {
		return models.CustomPayment{}, err
	}
	s.logCustomPayment(event, userID, cp)
	return cp, nil
}

func (s *Service) ApproveCustomPayment(ctx context.Context, actor authz.Actor, userID, id string) (models.CustomPayment, error) {
	return s.customPaymentStep(ctx, actor, authz.ActionConfirm, userID, id, "custom payment approved", s.payouts.ApproveCustomPayment)
}

func (s *Service) RejectCustomPayment(ctx context.Context, actor authz.Actor, userID, id string) (models.CustomPayment, error) {
	return s.customPaymentStep(ctx, actor, authz.ActionConfirm, userID, id, "custom payment rejected", s.payouts.RejectCustomPayment)
}

func (s *Service) MarkCustomPaymentPaid(ctx context.Context, actor authz.Actor, userID, id string) (models.CustomPayment, error) {
	return s.customPaymentStep(ctx, actor, authz.ActionPay, userID, id, "custom payment paid", s.payouts.MarkCustomPaymentPaid)
}

func (s *Service) ConfirmCustomPaymentReceived(ctx context.Context, actor authz.Actor, userID, id string) (models.CustomPayment, models.Expense, error) {
	var cp models.CustomPayment
	var e models.Expense
	err := s.mutate(ctx, actor, authz.CustomPaymentsOf(userID), authz.ActionConfirm, func(u *store.UnitOfWork) error {
		var err error
		cp, e, err = s.payouts.ConfirmCustomPaymentReceived(u, actor.ID, userID, id)
		return err
	})
	if err != nil {
		return models.CustomPayment{}, models.Expense{}, err
	}
	s.logCustomPayment("custom payment received", userID, cp)
	s.logBooked(e)
	return cp, e, nil
}

func (s *Service) SubmitDeposit(ctx context.Context, actor authz.Actor, amount decimal.Decimal, description string) (models.Deposit, error) {
	var d models.Deposit
	err := s.mutate(ctx, actor, authz.ResourceDeposits, authz.ActionCreate, func(u *store.UnitOfWork) error {
		var err error
		d, err = s.payouts.SubmitDeposit(u, actor.ID, amount, description)
		return err
	})
	if err != nil {
		return models.Deposit{}, err
	}
	s.logger.Info("deposit submitted", zap.String("deposit_id", d.ID), zap.String("amount", d.Amount.StringFixed(2)))
	return d, nil
}

func (s *Service) decideDeposit(ctx context.Context, actor authz.Actor, id, event string, op func(u *store.UnitOfWork, actorID, id string) (models.Deposit, error)) (models.Deposit, error) {
	var d models.Deposit
	err := s.mutate(ctx, actor, authz.ResourceDeposits, authz.ActionApprove, func(u *store.UnitOfWork) error {
		var err error
		d, err = op(u, actor.ID, id)
		return err
	})
	if err != nil {
		return models.Deposit{}, err
	}
	s.logger.Info(event, zap.String("deposit_id", id), zap.String("actor_id", actor.ID))
	return d, nil
}

func (s *Service) ApproveDeposit(ctx context.Context, actor authz.Actor, id string) (models.Deposit, error) {
	return s.decideDeposit(ctx, actor, id, "deposit approved", s.payouts.ApproveDeposit)
}

func (s *Service) RejectDeposit(ctx context.Context, actor authz.Actor, id string) (models.Deposit, error) {
	return s.decideDeposit(ctx, actor, id, "deposit rejected", s.payouts.RejectDeposit)
}

func (s *Service) SubmitExpenseRequest(ctx context.Context, actor authz.Actor, category string, amount decimal.Decimal, description string) (models.ExpenseRequest, error) {
	var r models.ExpenseRequest
	err := s.mutate(ctx, actor, authz.ResourceExpenseRequests, authz.ActionCreate, func(u *store.UnitOfWork) error {
		var err error
		r, err = s.payouts.SubmitExpenseRequest(u, actor.ID, category, amount, description)
		return err
	})
	if err != nil {
		return models.ExpenseRequest{}, err
	}
	s.logger.Info("expense request submitted", zap.String("request_id", r.ID), zap.String("category", r.Category))
	return r, nil
}

func (s *Service) ApproveExpenseRequest(ctx context.Context, actor authz.Actor, id string) (models.ExpenseRequest, models.Expense, error) {
	var r models.ExpenseRequest
	var e models.Expense
	err := s.mutate(ctx, actor, authz.ResourceExpenseRequests, authz.ActionApprove, func(u *store.UnitOfWork) error {
		var err error
		r, e, err = s.payouts.ApproveExpenseRequest(u, actor.ID, id)
		return err
	})
	if err != nil {
		return models.ExpenseRequest{}, models.Expense{}, err
	}
	s.logger.Info("expense request approved", zap.String("request_id", id), zap.String("actor_id", actor.ID))
	s.logBooked(e)
	return r, e, nil
}

func (s *Service) RejectExpenseRequest(ctx context.Context, actor authz.Actor, id string) (models.ExpenseRequest, error) {
	var r models.ExpenseRequest
	err := s.mutate(ctx, actor, authz.ResourceExpenseRequests, authz.ActionApprove, func(u *store.UnitOfWork) error {
		var err error
		r, err = s.payouts.RejectExpenseRequest(u, actor.ID, id)
		return err
	})
	if err != nil {
		return models.ExpenseRequest{}, err
	}
	s.logger.Info("expense request rejected", zap.String("request_id", id), zap.String("actor_id", actor.ID))
	return r, nil
}
