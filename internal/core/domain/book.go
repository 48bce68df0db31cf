package domain

import "time"

type Book struct {
	ID              int64
	Title           string
	Author          string
	Description     string
	ISBN            string
	PublicationYear int
	Genre           string
	Stock           int
	IsAvailable     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Availability is the part of a book the lending workflow reads and mutates.
type Availability struct {
	BookID      int64 `json:"book_id"`
	Stock       int   `json:"stock"`
	IsAvailable bool  `json:"is_available"`
}

// Lendable reports whether a copy can be handed out right now.
func (a Availability) Lendable() bool {
	return a.IsAvailable && a.Stock > 0
}
