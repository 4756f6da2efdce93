package ledger

import (
	"context"
	"time"

	"vcoin/internal/domain"
)

// Default and maximum page sizes of listings
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TransactionFilter narrows a transaction listing. Zero values match everything.
type TransactionFilter struct {
	UserID   uint
	Type     domain.TransactionType
	CoinType domain.CoinType
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// Normalize clamps paging to sane bounds
func (f *TransactionFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// TransactionPage is one page of a transaction listing
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	Total        int64                `json:"total"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
}

// Transactions lists log entries newest first
func (l *Ledger) Transactions(ctx context.Context, f TransactionFilter) (TransactionPage, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return TransactionPage{}, ErrInvalidRange
	}
	if f.CoinType != "" && !f.CoinType.Valid() {
		return TransactionPage{}, ErrInvalidCoinType
	}
	f.Normalize()

	q := l.db.WithContext(ctx).Model(&domain.Transaction{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.CoinType != "" {
		q = q.Where("coin_type = ?", f.CoinType)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at <= ?", f.To)
	}

	page := TransactionPage{Page: f.Page, PageSize: f.PageSize}
	if err := q.Count(&page.Total).Error; err != nil {
		return TransactionPage{}, err
	}
	err := q.Order("created_at desc, id desc").
		Offset((f.Page - 1) * f.PageSize).Limit(f.PageSize).
		Find(&page.Transactions).Error
	return page, err
}
