// Package wire implements the RFC 1035 DNS wire format: header and
// section encoding/decoding, §4.1.4 name compression, and the tagged
// RDATA shapes this resolver understands.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/haloarc/iterdns/internal/dns/common/log"
	"github.com/haloarc/iterdns/internal/dns/domain"
)

// Codec encodes and decodes DNS messages for UDP transport. A logger is
// injected at construction, matching the style of the rest of the
// resolver's collaborators.
type Codec struct {
	logger log.Logger
}

// NewCodec returns a Codec that logs through the given logger.
func NewCodec(logger log.Logger) *Codec {
	return &Codec{logger: logger}
}

// writeHeader serializes a Header's 12 octets to buf.
func writeHeader(buf *bytes.Buffer, h domain.Header) error {
	for _, v := range []uint16{h.ID, h.PackFlags(), h.QDCount, h.ANCount, h.NSCount, h.ARCount} {
		if err := binary.Write(buf, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// EncodeQuery builds a single-question query message: a 12-byte header
// (QDCOUNT=1, ANCOUNT/NSCOUNT/ARCOUNT=0, RD set per rd) followed by the
// question section.
func (c *Codec) EncodeQuery(q domain.Question, rd bool) ([]byte, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFormerrEncode, err)
	}

	var buf bytes.Buffer
	header := domain.Header{ID: q.ID, RD: rd, QDCount: 1}
	if err := writeHeader(&buf, header); err != nil {
		return nil, err
	}

	offsets := map[string]int{}
	if err := encodeName(&buf, q.Name, offsets); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(q.Type)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(q.Class)); err != nil {
		return nil, err
	}

	c.logger.Debug(map[string]any{
		"id":    q.ID,
		"name":  q.Name,
		"type":  q.Type.String(),
		"class": q.Class.String(),
		"rd":    rd,
	}, "encoded query")

	return buf.Bytes(), nil
}

// EncodeMessage serializes a full Message: header, questions, then
// answers, authorities, and additionals in order. Section counts are
// derived from the slice lengths rather than trusted from msg.Header.
func (c *Codec) EncodeMessage(msg domain.Message) ([]byte, error) {
	var buf bytes.Buffer

	header := msg.Header
	header.QDCount = uint16(len(msg.Questions))
	header.ANCount = uint16(len(msg.Answers))
	header.NSCount = uint16(len(msg.Authorities))
	header.ARCount = uint16(len(msg.Additionals))
	if err := writeHeader(&buf, header); err != nil {
		return nil, err
	}

	offsets := map[string]int{}
	for _, q := range msg.Questions {
		if err := encodeName(&buf, q.Name, offsets); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(q.Type)); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(q.Class)); err != nil {
			return nil, err
		}
	}

	for _, section := range [][]domain.ResourceRecord{msg.Answers, msg.Authorities, msg.Additionals} {
		for _, rr := range section {
			if err := encodeRR(&buf, rr, offsets); err != nil {
				return nil, err
			}
		}
	}

	c.logger.Debug(map[string]any{
		"id":   msg.Header.ID,
		"an":   len(msg.Answers),
		"ns":   len(msg.Authorities),
		"ar":   len(msg.Additionals),
		"size": buf.Len(),
	}, "encoded message")

	return buf.Bytes(), nil
}

// decodeMessage is the shared decode core for DecodeQuery and
// DecodeMessage: header, then qdcount questions, then ancount+nscount+
// arcount resource records in order (spec §4.1's message decode rule —
// offsets need not be non-decreasing; compression pointers may point
// backward anywhere in the message).
func decodeMessage(data []byte) (domain.Message, error) {
	if len(data) < 12 {
		return domain.Message{}, fmt.Errorf("%w: message shorter than the 12-byte header", domain.ErrFormerrDecode)
	}

	id := binary.BigEndian.Uint16(data[0:2])
	flags := binary.BigEndian.Uint16(data[2:4])
	qr, opcode, aa, tc, rd, ra, z, rcode := domain.UnpackFlags(flags)
	qdcount := binary.BigEndian.Uint16(data[4:6])
	ancount := binary.BigEndian.Uint16(data[6:8])
	nscount := binary.BigEndian.Uint16(data[8:10])
	arcount := binary.BigEndian.Uint16(data[10:12])

	offset := 12
	questions := make([]domain.Question, 0, qdcount)
	for i := 0; i < int(qdcount); i++ {
		name, newOffset, err := decodeName(data, offset, map[int]struct{}{})
		if err != nil {
			return domain.Message{}, fmt.Errorf("question %d: %w", i, err)
		}
		offset = newOffset
		if offset+4 > len(data) {
			return domain.Message{}, fmt.Errorf("%w: truncated question section", domain.ErrFormerrDecode)
		}
		qtype := domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		qclass := domain.RRClass(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		questions = append(questions, domain.Question{ID: id, Name: name, Type: qtype, Class: qclass})
	}

	answers, offset, err := decodeRRs(data, offset, int(ancount))
	if err != nil {
		return domain.Message{}, fmt.Errorf("answers: %w", err)
	}
	authorities, offset, err := decodeRRs(data, offset, int(nscount))
	if err != nil {
		return domain.Message{}, fmt.Errorf("authorities: %w", err)
	}
	additionals, _, err := decodeRRs(data, offset, int(arcount))
	if err != nil {
		return domain.Message{}, fmt.Errorf("additionals: %w", err)
	}

	return domain.Message{
		Header: domain.Header{
			ID: id, QR: qr, Opcode: opcode, AA: aa, TC: tc, RD: rd, RA: ra, Z: z, RCode: rcode,
			QDCount: qdcount, ANCount: ancount, NSCount: nscount, ARCount: arcount,
		},
		Questions:   questions,
		Answers:     answers,
		Authorities: authorities,
		Additionals: additionals,
	}, nil
}

// DecodeQuery decodes a message expected to be a query: exactly one
// question. The resolver does not call it; client datagrams are forwarded
// upstream without being decoded.
func (c *Codec) DecodeQuery(data []byte) (domain.Message, error) {
	msg, err := decodeMessage(data)
	if err != nil {
		return domain.Message{}, err
	}
	if len(msg.Questions) != 1 {
		return domain.Message{}, fmt.Errorf("%w: query must carry exactly one question, got %d", domain.ErrFormerrDecode, len(msg.Questions))
	}
	return msg, nil
}

// DecodeHeader decodes only the 12-byte header, without attempting to
// parse any section. The resolver uses this to check ancount even when
// a reply's body fails to fully decode (spec §4.3 step 2: a reply that
// carries an answer is still forwarded verbatim even if something past
// the answer section is malformed).
func (c *Codec) DecodeHeader(data []byte) (domain.Header, error) {
	if len(data) < 12 {
		return domain.Header{}, fmt.Errorf("%w: message shorter than the 12-byte header", domain.ErrFormerrDecode)
	}
	id := binary.BigEndian.Uint16(data[0:2])
	flags := binary.BigEndian.Uint16(data[2:4])
	qr, opcode, aa, tc, rd, ra, z, rcode := domain.UnpackFlags(flags)
	return domain.Header{
		ID: id, QR: qr, Opcode: opcode, AA: aa, TC: tc, RD: rd, RA: ra, Z: z, RCode: rcode,
		QDCount: binary.BigEndian.Uint16(data[4:6]),
		ANCount: binary.BigEndian.Uint16(data[6:8]),
		NSCount: binary.BigEndian.Uint16(data[8:10]),
		ARCount: binary.BigEndian.Uint16(data[10:12]),
	}, nil
}

// DecodeMessage decodes a complete DNS message from data.
func (c *Codec) DecodeMessage(data []byte) (domain.Message, error) {
	msg, err := decodeMessage(data)
	if err != nil {
		return domain.Message{}, err
	}
	c.logger.Debug(map[string]any{
		"id":    msg.Header.ID,
		"rcode": msg.Header.RCode.String(),
		"an":    len(msg.Answers),
		"ns":    len(msg.Authorities),
		"ar":    len(msg.Additionals),
	}, "decoded message")
	return msg, nil
}

// EncodePTRQuestion builds the question name for a reverse (PTR) lookup
// of a dotted-quad IPv4 address: the octets reversed, followed by
// "in-addr.arpa.". Emitted lowercase per case-insensitive DNS convention;
// decodeName itself is case-preserving, so a reply using the source's
// uppercase "IN-ADDR.ARPA" form still decodes without error.
func EncodePTRQuestion(ip string) (string, error) {
	addr := net.ParseIP(ip)
	v4 := addr.To4()
	if v4 == nil {
		return "", fmt.Errorf("%w: %q is not a dotted-quad IPv4 address", domain.ErrFormerrEncode, ip)
	}
	return fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa.", v4[3], v4[2], v4[1], v4[0]), nil
}
