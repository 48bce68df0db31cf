package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLendingStatus_Valid(t *testing.T) {
	for _, s := range []LendingStatus{LendingStatusBorrowed, LendingStatusReturned, LendingStatusOverdue, LendingStatusLost} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, LendingStatus("").Valid())
	assert.False(t, LendingStatus("Returned").Valid())
}

func TestLendingStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to LendingStatus
		want     bool
	}{
		{LendingStatusBorrowed, LendingStatusReturned, true},
		{LendingStatusBorrowed, LendingStatusOverdue, true},
		{LendingStatusBorrowed, LendingStatusLost, true},
		{LendingStatusOverdue, LendingStatusReturned, true},
		{LendingStatusOverdue, LendingStatusBorrowed, true},
		{LendingStatusLost, LendingStatusReturned, true},
		{LendingStatusLost, LendingStatusOverdue, false},
		{LendingStatusReturned, LendingStatusBorrowed, false},
		{LendingStatusReturned, LendingStatusLost, false},
		{LendingStatusReturned, LendingStatusReturned, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestJoinLending(t *testing.T) {
	borrowed := time.Date(2024, 7, 1, 9, 15, 0, 0, time.UTC)
	l := Lending{
		ID:           5,
		UserID:       10,
		BookID:       1,
		BorrowedDate: borrowed,
		DueDate:      time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		Status:       LendingStatusBorrowed,
	}
	b := Book{ID: 1, Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", Stock: 2, IsAvailable: true}

	got := JoinLending(l, b)
	assert.Equal(t, int64(5), got.LendingID)
	assert.Equal(t, borrowed, got.BorrowedDate)
	assert.Equal(t, "2024-07-15", got.DueDate)
	assert.Nil(t, got.ReturnedDate)
	assert.Equal(t, "Dune", got.BookTitle)
	assert.Equal(t, 2, got.BookStock)
	assert.True(t, got.BookIsAvailable)

	returned := time.Date(2024, 7, 12, 0, 0, 0, 0, time.UTC)
	l.Status = LendingStatusReturned
	l.ReturnedDate = &returned
	got = JoinLending(l, b)
	if assert.NotNil(t, got.ReturnedDate) {
		assert.Equal(t, "2024-07-12", *got.ReturnedDate)
	}
}

func TestTruncate(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	in := time.Date(2024, 7, 1, 23, 59, 59, 999, loc)

	got := Truncate(in)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestErrorClasses(t *testing.T) {
	assert.True(t, errors.Is(ErrTokenExpired, ErrUnauthenticated))
	assert.True(t, errors.Is(ErrBookNotFound, ErrNotFound))
	assert.True(t, errors.Is(ErrLendingNotFound, ErrNotFound))
	for _, err := range []error{ErrBookUnavailable, ErrDuplicateRequest, ErrInvalidTransition, ErrLendingModified} {
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.ErrorIs(t, InvalidInput("user_id %d", 0), ErrInvalidInput)
	assert.ErrorIs(t, Internal("boom"), ErrInternal)
	assert.False(t, errors.Is(ErrOutOfStock, ErrConflict))
}
