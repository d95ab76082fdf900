package domain

import "fmt"

// Message is a complete in-memory DNS message: a header plus the four
// ordered record sections (RFC 1035 §4.1). Both the resolver and the
// client operate on this type; the wire package is the only place that
// turns one into bytes and back.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authorities []ResourceRecord
	Additionals []ResourceRecord
}

// NewMessage constructs a Message and validates its fields. Section
// counts on the header are set from the slice lengths, matching the
// wire codec's own behavior on encode.
func NewMessage(header Header, questions []Question, answers, authorities, additionals []ResourceRecord) (Message, error) {
	header.QDCount = uint16(len(questions))
	header.ANCount = uint16(len(answers))
	header.NSCount = uint16(len(authorities))
	header.ARCount = uint16(len(additionals))

	msg := Message{
		Header:      header,
		Questions:   questions,
		Answers:     answers,
		Authorities: authorities,
		Additionals: additionals,
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// NewErrorMessage builds a Message carrying only a header set to the
// given RCode, for NXDOMAIN/FORMERR/SERVFAIL-style responses constructed
// locally rather than received on the wire. The resolver itself never
// synthesizes one; it only forwards upstream replies.
func NewErrorMessage(id uint16, rcode RCode) Message {
	return Message{
		Header: Header{
			ID:    id,
			QR:    true,
			RCode: rcode,
		},
	}
}

// Validate checks whether the Message's header and every record in every
// section are structurally valid.
func (m Message) Validate() error {
	if !m.Header.RCode.IsValid() {
		return fmt.Errorf("invalid RCode: %d", m.Header.RCode)
	}
	for i, q := range m.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("invalid question at index %d: %w", i, err)
		}
	}
	for i, rr := range m.Answers {
		if err := rr.Validate(); err != nil {
			return fmt.Errorf("invalid answer record at index %d: %w", i, err)
		}
	}
	for i, rr := range m.Authorities {
		if err := rr.Validate(); err != nil {
			return fmt.Errorf("invalid authority record at index %d: %w", i, err)
		}
	}
	for i, rr := range m.Additionals {
		if err := rr.Validate(); err != nil {
			return fmt.Errorf("invalid additional record at index %d: %w", i, err)
		}
	}
	return nil
}

// IsError reports whether the message's RCode indicates anything other
// than NOERROR.
func (m Message) IsError() bool {
	return m.Header.RCode != 0
}

// HasAnswers reports whether the message carries at least one answer
// record. This is the resolver's "does this response answer the
// question?" check.
func (m Message) HasAnswers() bool {
	return len(m.Answers) > 0
}

// GlueAddresses returns the IPv4 addresses of every A record in the
// additional section, in order. This is the resolver's
// "is this a usable referral?" extraction: a referral with no glue here
// is a dead end.
func (m Message) GlueAddresses() []string {
	var ips []string
	for _, rr := range m.Additionals {
		if rr.IsGlue() {
			ips = append(ips, rr.RData.IP)
		}
	}
	return ips
}
