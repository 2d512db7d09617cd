package models

import "time"

// Attendance is one immutable attendance event ("presenca") for a student.
type Attendance struct {
	ID         int64     `db:"id" json:"id"`
	StudentID  int64     `db:"aluno_id" json:"alunoId"`
	RecordedAt time.Time `db:"recorded_at" json:"dataHora"`
	Present    bool      `db:"present" json:"presente"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// AttendanceRecord is an attendance row joined with the student it references.
type AttendanceRecord struct {
	Attendance
	Student StudentRef `db:"aluno" json:"aluno"`
}

// StudentRef is the student projection embedded in attendance responses.
type StudentRef struct {
	ID     int64  `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Number int    `db:"number" json:"number"`
}

// Ref projects a student into the reference embedded in attendance records.
func (s Student) Ref() StudentRef {
	return StudentRef{ID: s.ID, Name: s.Name, Number: s.Number}
}

// AttendanceFilter scopes attendance listings; zero values mean "no constraint".
type AttendanceFilter struct {
	StudentID int64
	From      *time.Time
	To        *time.Time
}
