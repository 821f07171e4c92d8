package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/shopspring/decimal"
)

type SourceKind string

const (
	SourceWithdrawal     SourceKind = "withdrawal"
	SourceCustomPayment  SourceKind = "custom_payment"
	SourceExpenseRequest SourceKind = "expense_request"
)

var namespace = uuid.MustParse("6f1c7d2e-4b8a-5e3f-9c1d-2a7b8e4f6d10")

type Entry struct {
	Kind         SourceKind
	SourceID     string
	Amount       decimal.Decimal
	Category     string
	Description  string
	AttributedTo string
	Date         time.Time
}

func Key(kind SourceKind, sourceID string) string {
	return string(kind) + ":" + sourceID
}

// ExpenseID is the deterministic ledger id of a source event.
func ExpenseID(kind SourceKind, sourceID string) string {
	return uuid.NewSHA1(namespace, []byte(Key(kind, sourceID))).String()
}

// Book is the expense ledger plus its idempotency index, mapping a source
// event key to the id of the expense it produced.
type Book struct {
	expenses *[]models.Expense
	index    map[string]string
}

func NewBook(expenses *[]models.Expense, index map[string]string) *Book {
	return &Book{expenses: expenses, index: index}
}

// Materialize books the expense for a source event. A repeated event replaces
// the row it produced before instead of appending a second one.
func (b *Book) Materialize(e Entry) (models.Expense, bool, error) {
	if e.SourceID == "" || e.Kind == "" {
		return models.Expense{}, false, errs.Invalid("ledger entry needs a source")
	}
	if !e.Amount.IsPositive() {
		return models.Expense{}, false, errs.Invalid("ledger amount must be positive, got %s", e.Amount)
	}

	key := Key(e.Kind, e.SourceID)
	id, indexed := b.index[key]
	if !indexed {
		id = ExpenseID(e.Kind, e.SourceID)
	}

	expense := models.Expense{
		ID:           id,
		Date:         e.Date,
		Category:     e.Category,
		Description:  e.Description,
		Amount:       e.Amount,
		SourceKind:   string(e.Kind),
		SourceID:     e.SourceID,
		AttributedTo: e.AttributedTo,
	}

	for i := range *b.expenses {
		if (*b.expenses)[i].ID == id {
			(*b.expenses)[i] = expense
			b.index[key] = id
			return expense, false, nil
		}
	}

	*b.expenses = append(*b.expenses, expense)
	b.index[key] = id
	return expense, true, nil
}

func (b *Book) Lookup(kind SourceKind, sourceID string) (models.Expense, bool) {
	id, ok := b.index[Key(kind, sourceID)]
	if !ok {
		return models.Expense{}, false
	}
	for _, e := range *b.expenses {
		if e.ID == id {
			return e, true
		}
	}
	return models.Expense{}, false
}

func (b *Book) Expenses() []models.Expense {
	return *b.expenses
}
