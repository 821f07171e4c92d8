package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/safar/retail-ledger/internal/models"
)

type CursorPage struct {
	Items      interface{} `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

type OffsetPage struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

type ExpenseCursor struct {
	Date time.Time `json:"date"`
	ID   string    `json:"id"`
}

func EncodeCursor(cursor ExpenseCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor returns the zero cursor, meaning the first page, for "".
func DecodeCursor(encoded string) (ExpenseCursor, error) {
	var cursor ExpenseCursor
	if encoded == "" {
		return cursor, nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, err
	}

	err = json.Unmarshal(data, &cursor)
	return cursor, err
}

type SaleFilter struct {
	Status     models.SaleStatus
	CustomerID string
	SellerID   string
}

func (f SaleFilter) match(s models.Sale) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.CustomerID != "" && s.CustomerID != f.CustomerID {
		return false
	}
	if f.SellerID != "" && s.SellerID != f.SellerID {
		return false
	}
	return true
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// ListSales pages sales newest first.
func ListSales(sales []models.Sale, filter SaleFilter, page, pageSize int) *OffsetPage {
	page, pageSize = normalizePage(page, pageSize)

	matched := make([]models.Sale, 0, len(sales))
	for _, s := range sales {
		if filter.match(s) {
			matched = append(matched, s)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	offset := (page - 1) * pageSize
	items := []models.Sale{}
	if offset < total {
		end := offset + pageSize
		if end > total {
			end = total
		}
		items = matched[offset:end]
	}

	totalPages := total / pageSize
	if total%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      items,
		Total:      int64(total),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

func expenseBefore(e models.Expense, c ExpenseCursor) bool {
	if e.Date.Equal(c.Date) {
		return e.ID < c.ID
	}
	return e.Date.Before(c.Date)
}

// ListExpenses pages the ledger by (date, id) descending.
func ListExpenses(expenses []models.Expense, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sorted := append([]models.Expense(nil), expenses...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].Date.After(sorted[j].Date)
	})

	items := make([]models.Expense, 0, limit+1)
	for _, e := range sorted {
		if cursor != "" && !expenseBefore(e, cursorData) {
			continue
		}
		items = append(items, e)
		if len(items) > limit {
			break
		}
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = EncodeCursor(ExpenseCursor{Date: last.Date, ID: last.ID})
	}

	return &CursorPage{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
