package domain

import "fmt"

// Question represents a DNS query section: the name, type, and class being
// asked about. ID is carried alongside the question so the codec can write
// it into the header of an encoded query and stamp decoded questions with
// their message's ID. The resolver does not match replies by ID: it
// handles one query at a time and forwards raw bytes.
type Question struct {
	ID    uint16
	Name  string
	Type  RRType
	Class RRClass
}

// NewQuestion constructs a Question and validates its fields.
func NewQuestion(id uint16, name string, rrtype RRType, class RRClass) (Question, error) {
	q := Question{
		ID:    id,
		Name:  name,
		Type:  rrtype,
		Class: class,
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Validate checks whether the Question fields are structurally and semantically valid.
func (q Question) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("query name must not be empty")
	}
	if !q.Type.IsValid() {
		return fmt.Errorf("unsupported RRType: %d", q.Type)
	}
	if !q.Class.IsValid() {
		return fmt.Errorf("unsupported RRClass: %d", q.Class)
	}
	return nil
}
