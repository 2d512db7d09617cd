package models

import "time"

// Student is an enrolled learner ("aluno"), unique by Number.
type Student struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Number    int       `db:"number" json:"number"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
