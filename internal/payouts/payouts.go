package payouts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/ledger"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/safar/retail-ledger/internal/store"
	"github.com/shopspring/decimal"
)

// Workflows drives the approval chains for money leaving or entering the
// business. Only the final step of a chain books an expense.
type Workflows struct {
	now   func() time.Time
	newID func() string
}

func New() *Workflows {
	return &Workflows{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

func (w *Workflows) WithClock(now func() time.Time) *Workflows {
	w.now = now
	return w
}

func step[S ~string](kind, id string, current *S, from, to S, op string) error {
	if *current != from {
		return errs.Transition(kind, id, string(*current), op)
	}
	*current = to
	return nil
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errs.Invalid("amount must be positive, got %s", amount)
	}
	return nil
}

func requireRecipient(actorID string, user *models.User, op string) error {
	if actorID != user.ID {
		return fmt.Errorf("%w: only %s can %s", errs.ErrForbidden, user.ID, op)
	}
	return nil
}

// PayoutCategory books investor money separately from staff pay.
func PayoutCategory(role models.Role, source models.WithdrawalSource) string {
	if role == models.RoleInvestor || source == models.SourceInvestment {
		return models.CategoryInvestorPayout
	}
	return models.CategoryStaffPayout
}

func findWithdrawal(user *models.User, id string) (*models.Withdrawal, error) {
	for i := range user.Withdrawals {
		if user.Withdrawals[i].ID == id {
			return &user.Withdrawals[i], nil
		}
	}
	return nil, errs.NotFound("withdrawal", id)
}

func findCustomPayment(user *models.User, id string) (*models.CustomPayment, error) {
	for i := range user.CustomPayments {
		if user.CustomPayments[i].ID == id {
			return &user.CustomPayments[i], nil
		}
	}
	return nil, errs.NotFound("custom payment", id)
}

func (w *Workflows) RequestWithdrawal(u *store.UnitOfWork, userID string, amount decimal.Decimal, source models.WithdrawalSource) (models.Withdrawal, error) {
	if err := requirePositive(amount); err != nil {
		return models.Withdrawal{}, err
	}
	if source != models.SourceCommission && source != models.SourceInvestment {
		return models.Withdrawal{}, errs.Invalid("unknown withdrawal source %q", source)
	}
	user, err := u.User(userID)
	if err != nil {
		return models.Withdrawal{}, err
	}

	wd := models.Withdrawal{
		ID:     w.newID(),
		Date:   w.now(),
		Amount: amount,
		Source: source,
		Status: models.WithdrawalPending,
	}
	user.Withdrawals = append(user.Withdrawals, wd)
	return wd, nil
}

func (w *Workflows) withdrawalStep(u *store.UnitOfWork, userID, id string, from, to models.WithdrawalStatus, op string) (*models.User, *models.Withdrawal, error) {
	user, err := u.User(userID)
	if err != nil {
		return nil, nil, err
	}
	wd, err := findWithdrawal(user, id)
	if err != nil {
		return nil, nil, err
	}
	if err := step("withdrawal", id, &wd.Status, from, to, op); err != nil {
		return nil, nil, err
	}
	return user, wd, nil
}

func (w *Workflows) ApproveWithdrawal(u *store.UnitOfWork, userID, id string) (models.Withdrawal, error) {
	_, wd, err := w.withdrawalStep(u, userID, id, models.WithdrawalPending, models.WithdrawalApproved, "approve")
	if err != nil {
		return models.Withdrawal{}, err
	}
	return *wd, nil
}

func (w *Workflows) RejectWithdrawal(u *store.UnitOfWork, userID, id string) (models.Withdrawal, error) {
	_, wd, err := w.withdrawalStep(u, userID, id, models.WithdrawalPending, models.WithdrawalRejected, "reject")
	if err != nil {
		return models.Withdrawal{}, err
	}
	return *wd, nil
}

func (w *Workflows) MarkWithdrawalPaid(u *store.UnitOfWork, userID, id string) (models.Withdrawal, error) {
	_, wd, err := w.withdrawalStep(u, userID, id, models.WithdrawalApproved, models.WithdrawalPaid, "mark paid")
	if err != nil {
		return models.Withdrawal{}, err
	}
	return *wd, nil
}

// ConfirmWithdrawalReceived closes a paid withdrawal on the recipient's word
// and books it as an expense.
func (w *Workflows) ConfirmWithdrawalReceived(u *store.UnitOfWork, actorID, userID, id string) (models.Withdrawal, models.Expense, error) {
	user, err := u.User(userID)
	if err != nil {
		return models.Withdrawal{}, models.Expense{}, err
	}
	if err := requireRecipient(actorID, user, "confirm this withdrawal"); err != nil {
		return models.Withdrawal{}, models.Expense{}, err
	}

	_, wd, err := w.withdrawalStep(u, userID, id, models.WithdrawalPaid, models.WithdrawalCompleted, "confirm receipt of")
	if err != nil {
		return models.Withdrawal{}, models.Expense{}, err
	}

	expense, _, err := u.Book().Materialize(ledger.Entry{
		Kind:         ledger.SourceWithdrawal,
		SourceID:     wd.ID,
		Amount:       wd.Amount,
		Category:     PayoutCategory(user.Role, wd.Source),
		Description:  fmt.Sprintf("%s withdrawal by %s", wd.Source, user.Name),
		AttributedTo: user.ID,
		Date:         w.now(),
	})
	if err != nil {
		return models.Withdrawal{}, models.Expense{}, err
	}
	return *wd, expense, nil
}

func (w *Workflows) InitiateCustomPayment(u *store.UnitOfWork, initiatorID, userID string, amount decimal.Decimal, description string) (models.CustomPayment, error) {
	if err := requirePositive(amount); err != nil {
		return models.CustomPayment{}, err
	}
	if _, err := u.User(initiatorID); err != nil {
		return models.CustomPayment{}, err
	}
	user, err := u.User(userID)
	if err != nil {
		return models.CustomPayment{}, err
	}

	cp := models.CustomPayment{
		ID:          w.newID(),
		Date:        w.now(),
		Amount:      amount,
		Description: description,
		InitiatorID: initiatorID,
		Status:      models.CustomPaymentPendingUserApproval,
	}
	user.CustomPayments = append(user.CustomPayments, cp)
	return cp, nil
}

func (w *Workflows) customPaymentStep(u *store.UnitOfWork, actorID, userID, id string, from, to models.CustomPaymentStatus, op string, recipientOnly bool) (*models.User, *models.CustomPayment, error) {
	user, err := u.User(userID)
	if err != nil {
		return nil, nil, err
	}
	if recipientOnly {
		if err := requireRecipient(actorID, user, op+" this payment"); err != nil {
			return nil, nil, err
		}
	}
	cp, err := findCustomPayment(user, id)
	if err != nil {
		return nil, nil, err
	}
	if err := step("custom payment", id, &cp.Status, from, to, op); err != nil {
		return nil, nil, err
	}
	return user, cp, nil
}

func (w *Workflows) ApproveCustomPayment(u *store.UnitOfWork, actorID, userID, id string) (models.CustomPayment, error) {
	_, cp, err := w.customPaymentStep(u, actorID, userID, id,
		models.CustomPaymentPendingUserApproval, models.CustomPaymentApprovedByUser, "approve", true)
	if err != nil {
		return models.CustomPayment{}, err
	}
	return *cp, nil
}

func (w *Workflows) RejectCustomPayment(u *store.UnitOfWork, actorID, userID, id string) (models.CustomPayment, error) {
	_, cp, err := w.customPaymentStep(u, actorID, userID, id,
		models.CustomPaymentPendingUserApproval, models.CustomPaymentRejectedByUser, "reject", true)
	if err != nil {
		return models.CustomPayment{}, err
	}
	return *cp, nil
}

func (w *Workflows) MarkCustomPaymentPaid(u *store.UnitOfWork, actorID, userID, id string) (models.CustomPayment, error) {
	_, cp, err := w.customPaymentStep(u, actorID, userID, id,
		models.CustomPaymentApprovedByUser, models.CustomPaymentPaid, "mark paid", false)
	if err != nil {
		return models.CustomPayment{}, err
	}
	return *cp, nil
}

func (w *Workflows) ConfirmCustomPaymentReceived(u *store.UnitOfWork, actorID, userID, id string) (models.CustomPayment, models.Expense, error) {
	user, cp, err := w.customPaymentStep(u, actorID, userID, id,
		models.CustomPaymentPaid, models.CustomPaymentCompleted, "confirm receipt of", true)
	if err != nil {
		return models.CustomPayment{}, models.Expense{}, err
	}

	description := cp.Description
	if description == "" {
		description = "custom payment to " + user.Name
	}
	expense, _, err := u.Book().Materialize(ledger.Entry{
		Kind:         ledger.SourceCustomPayment,
		SourceID:     cp.ID,
		Amount:       cp.Amount,
		Category:     PayoutCategory(user.Role, ""),
		Description:  description,
		AttributedTo: user.ID,
		Date:         w.now(),
	})
	if err != nil {
		return models.CustomPayment{}, models.Expense{}, err
	}
	return *cp, expense, nil
}

func (w *Workflows) SubmitDeposit(u *store.UnitOfWork, submitterID string, amount decimal.Decimal, description string) (models.Deposit, error) {
	if err := requirePositive(amount); err != nil {
		return models.Deposit{}, err
	}
	if _, err := u.User(submitterID); err != nil {
		return models.Deposit{}, err
	}

	d := models.Deposit{
		ID:          w.newID(),
		Date:        w.now(),
		Amount:      amount,
		Description: description,
		SubmitterID: submitterID,
		Status:      models.ApprovalPending,
	}
	u.AddDeposit(d)
	return d, nil
}

func (w *Workflows) decideDeposit(u *store.UnitOfWork, actorID, id string, to models.ApprovalStatus, op string) (models.Deposit, error) {
	d, err := u.Deposit(id)
	if err != nil {
		return models.Deposit{}, err
	}
	if err := step("deposit", id, &d.Status, models.ApprovalPending, to, op); err != nil {
		return models.Deposit{}, err
	}
	d.DecidedBy = actorID
	return *d, nil
}

func (w *Workflows) ApproveDeposit(u *store.UnitOfWork, actorID, id string) (models.Deposit, error) {
	return w.decideDeposit(u, actorID, id, models.ApprovalApproved, "approve")
}

func (w *Workflows) RejectDeposit(u *store.UnitOfWork, actorID, id string) (models.Deposit, error) {
	return w.decideDeposit(u, actorID, id, models.ApprovalRejected, "reject")
}

func (w *Workflows) SubmitExpenseRequest(u *store.UnitOfWork, requesterID, category string, amount decimal.Decimal, description string) (models.ExpenseRequest, error) {
	if err := requirePositive(amount); err != nil {
		return models.ExpenseRequest{}, err
	}
	if category == "" {
		return models.ExpenseRequest{}, errs.Invalid("expense category is required")
	}
	if _, err := u.User(requesterID); err != nil {
		return models.ExpenseRequest{}, err
	}

	r := models.ExpenseRequest{
		ID:          w.newID(),
		Date:        w.now(),
		Category:    category,
		Amount:      amount,
		Description: description,
		RequesterID: requesterID,
		Status:      models.ApprovalPending,
	}
	u.AddExpenseRequest(r)
	return r, nil
}

// ApproveExpenseRequest books the request under its own category, attributed
// to whoever asked for it.
func (w *Workflows) ApproveExpenseRequest(u *store.UnitOfWork, approverID, id string) (models.ExpenseRequest, models.Expense, error) {
	r, err := u.ExpenseRequest(id)
	if err != nil {
		return models.ExpenseRequest{}, models.Expense{}, err
	}
	if err := step("expense request", id, &r.Status, models.ApprovalPending, models.ApprovalApproved, "approve"); err != nil {
		return models.ExpenseRequest{}, models.Expense{}, err
	}
	r.ApproverID = approverID

	expense, _, err := u.Book().Materialize(ledger.Entry{
		Kind:         ledger.SourceExpenseRequest,
		SourceID:     r.ID,
		Amount:       r.Amount,
		Category:     r.Category,
		Description:  r.Description,
		AttributedTo: r.RequesterID,
		Date:         w.now(),
	})
	if err != nil {
		return models.ExpenseRequest{}, models.Expense{}, err
	}
	return *r, expense, nil
}

func (w *Workflows) RejectExpenseRequest(u *store.UnitOfWork, approverID, id string) (models.ExpenseRequest, error) {
	r, err := u.ExpenseRequest(id)
	if err != nil {
		return models.ExpenseRequest{}, err
	}
	if err := step("expense request", id, &r.Status, models.ApprovalPending, models.ApprovalRejected, "reject"); err != nil {
		return models.ExpenseRequest{}, err
	}
	r.ApproverID = approverID
	return *r, nil
}
