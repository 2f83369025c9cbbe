package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/costing"
)

// TxRunner runs fn inside one transaction on the request's tenant scope.
// database.RunInTx is the production implementation.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// DashboardInvalidator drops a tenant's cached dashboard after a write.
// *cache.DashboardCache implements it.
type DashboardInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, int64) {}

func invalidatorOrNoop(inv DashboardInvalidator) DashboardInvalidator {
	if inv == nil {
		return noopInvalidator{}
	}
	return inv
}

// today returns the UTC calendar date of now.
func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// requiredText trims s and checks it is present and at most max runes.
func requiredText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperrors.Invalid(field, "is required")
	}
	if utf8.RuneCountInString(s) > max {
		return "", apperrors.Invalid(field, "must be at most %d characters", max)
	}
	return s, nil
}

// optionalText trims s and checks it is at most max runes. Blank becomes "".
func optionalText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		return "", apperrors.Invalid(field, "must be at most %d characters", max)
	}
	return s, nil
}

// checkChangePercentage rejects a price change whose relative size the price
// ledger cannot store, such as a jump from one cent to millions.
func checkChangePercentage(field string, change decimal.NullDecimal) error {
	if change.Valid && !costing.MoneyFits(change.Decimal) {
		return apperrors.Invalid(field, "price change is too large to record")
	}
	return nil
}
