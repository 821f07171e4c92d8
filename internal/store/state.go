package store

import (
	"encoding/json"
	"fmt"

	"github.com/safar/retail-ledger/internal/models"
)

const (
	KeyProducts        = "products"
	KeySales           = "sales"
	KeyCustomers       = "customers"
	KeyUsers           = "users"
	KeyDeposits        = "deposits"
	KeyExpenseRequests = "expense_requests"
	KeyExpenses        = "expenses"
	KeyLedgerIndex     = "ledger_index"
	KeyIntakeIndex     = "intake_index"
	KeySettings        = "settings"
)

// Keys lists every persisted tenant collection.
var Keys = []string{
	KeyProducts,
	KeySales,
	KeyCustomers,
	KeyUsers,
	KeyDeposits,
	KeyExpenseRequests,
	KeyExpenses,
	KeyLedgerIndex,
	KeyIntakeIndex,
	KeySettings,
}

type state struct {
	Products        []models.Product
	Sales           []models.Sale
	Customers       []models.Customer
	Users           []models.User
	Deposits        []models.Deposit
	ExpenseRequests []models.ExpenseRequest
	Expenses        []models.Expense
	LedgerIndex     map[string]string
	IntakeIndex     map[string]string
	Settings        models.BusinessSettings
}

func (s *state) field(key string) any {
	switch key {
	case KeyProducts:
		return &s.Products
	case KeySales:
		return &s.Sales
	case KeyCustomers:
		return &s.Customers
	case KeyUsers:
		return &s.Users
	case KeyDeposits:
		return &s.Deposits
	case KeyExpenseRequests:
		return &s.ExpenseRequests
	case KeyExpenses:
		return &s.Expenses
	case KeyLedgerIndex:
		return &s.LedgerIndex
	case KeyIntakeIndex:
		return &s.IntakeIndex
	case KeySettings:
		return &s.Settings
	}
	panic("unknown collection " + key)
}

func (s *state) normalize() {
	if s.LedgerIndex == nil {
		s.LedgerIndex = make(map[string]string)
	}
	if s.IntakeIndex == nil {
		s.IntakeIndex = make(map[string]string)
	}
}

// encodeState serializes each collection separately so unchanged ones can be
// skipped on flush.
func encodeState(s *state) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Keys))
	for _, key := range Keys {
		data, err := json.Marshal(s.field(key))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

// decodeState builds a fresh state sharing no memory with encoded. Missing
// collections start empty.
func decodeState(encoded map[string][]byte) (*state, error) {
	s := &state{}
	for _, key := range Keys {
		data, ok := encoded[key]
		if !ok || len(data) == 0 {
			continue
		}
		if err := json.Unmarshal(data, s.field(key)); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	s.normalize()
	return s, nil
}

func changedCollections(before, after map[string][]byte) map[string][]byte {
	changed := make(map[string][]byte)
	for key, data := range after {
		if string(before[key]) != string(data) {
			changed[key] = data
		}
	}
	return changed
}
