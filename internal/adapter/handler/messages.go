package handler

import (
	"time"

	"github.com/rl1809/library-lending/internal/core/domain"
)

// Wire messages shared by the HTTP and gRPC transports.

type BorrowRequest struct {
	UserID    int64  `json:"user_id"`
	BookID    int64  `json:"book_id"`
	DueDate   string `json:"due_date,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type BorrowResponse struct {
	Message   string `json:"message"`
	LendingID int64  `json:"lending_id"`
}

type UpdateLendingRequest struct {
	LendingID    int64   `json:"lending_id"`
	ReturnedDate *string `json:"returned_date,omitempty"`
	Status       *string `json:"status,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ListLendingsRequest struct {
	UserID int64 `json:"user_id"`
}

type ListLendingsResponse struct {
	Message string                   `json:"message,omitempty"`
	Data    []domain.LendingWithBook `json:"data"`
}

const (
	msgBorrowed   = "Book lent successfully."
	msgUpdated    = "Lending record updated successfully."
	msgNoLendings = "No lending records found for this user."
)

func (r BorrowRequest) command() (domain.BorrowCommand, error) {
	cmd := domain.BorrowCommand{
		UserID:    r.UserID,
		BookID:    r.BookID,
		RequestID: r.RequestID,
	}
	if r.DueDate != "" {
		due, err := parseDate("due_date", r.DueDate)
		if err != nil {
			return domain.BorrowCommand{}, err
		}
		cmd.DueDate = &due
	}
	return cmd, nil
}

func (r UpdateLendingRequest) command() (domain.UpdateLendingCommand, error) {
	cmd := domain.UpdateLendingCommand{LendingID: r.LendingID}
	if r.Status != nil {
		s := domain.LendingStatus(*r.Status)
		cmd.Status = &s
	}
	if r.ReturnedDate != nil {
		d, err := parseDate("returned_date", *r.ReturnedDate)
		if err != nil {
			return domain.UpdateLendingCommand{}, err
		}
		cmd.ReturnedDate = &d
	}
	return cmd, nil
}

func listResponse(rows []domain.LendingWithBook) ListLendingsResponse {
	if len(rows) == 0 {
		return ListLendingsResponse{Message: msgNoLendings, Data: []domain.LendingWithBook{}}
	}
	return ListLendingsResponse{Data: rows}
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(domain.DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, domain.InvalidInput("%s must be a date in YYYY-MM-DD format", field)
	}
	return t, nil
}
