package models

// Card is the only persisted entity. Number and PIN never change after issue.
type Card struct {
	Number  string `db:"number" json:"number"`
	PIN     string `db:"pin" json:"-"`
	Balance int64  `db:"balance" json:"balance"`
}
