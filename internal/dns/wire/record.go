package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/haloarc/iterdns/internal/dns/domain"
)

// decodeRR decodes a single resource record starting at offset: name,
// type, class, ttl, rdlength, then rdlength octets of RDATA (spec §4.1).
// It deliberately bypasses domain.NewResourceRecord's validating
// constructor: a record decoded off the wire must round-trip even when
// its class falls outside the recognized set, which Validate rejects.
func decodeRR(data []byte, offset int) (domain.ResourceRecord, int, error) {
	name, offset, err := decodeName(data, offset, map[int]struct{}{})
	if err != nil {
		return domain.ResourceRecord{}, 0, fmt.Errorf("record name: %w", err)
	}

	if offset+10 > len(data) {
		return domain.ResourceRecord{}, 0, fmt.Errorf("%w: truncated record header", domain.ErrFormerrDecode)
	}
	rrtype := domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	rrclass := domain.RRClass(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	ttl := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	rdlen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2

	rdata, err := decodeRData(data, offset, rdlen, rrtype)
	if err != nil {
		return domain.ResourceRecord{}, 0, fmt.Errorf("record rdata: %w", err)
	}
	offset += rdlen

	return domain.ResourceRecord{
		Name:  name,
		Type:  rrtype,
		Class: rrclass,
		TTL:   ttl,
		RData: rdata,
	}, offset, nil
}

// decodeRRs decodes count consecutive resource records starting at offset.
func decodeRRs(data []byte, offset, count int) ([]domain.ResourceRecord, int, error) {
	if count == 0 {
		return nil, offset, nil
	}
	rrs := make([]domain.ResourceRecord, 0, count)
	for i := 0; i < count; i++ {
		rr, newOffset, err := decodeRR(data, offset)
		if err != nil {
			return nil, 0, fmt.Errorf("record %d: %w", i, err)
		}
		rrs = append(rrs, rr)
		offset = newOffset
	}
	return rrs, offset, nil
}

// encodeRR writes a single resource record to buf: name, type, class, ttl,
// then a 2-byte rdlength placeholder patched in place once the rdata has
// been written, since rdata length is only known after encoding it (rdata
// for NS/CNAME/PTR/MX can itself use name compression against the rest of
// the message).
func encodeRR(buf *bytes.Buffer, rr domain.ResourceRecord, offsets map[string]int) error {
	if err := encodeName(buf, rr.Name, offsets); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(rr.Type)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(rr.Class)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, rr.TTL); err != nil {
		return err
	}

	rdlenOffset := buf.Len()
	if err := binary.Write(buf, binary.BigEndian, uint16(0)); err != nil {
		return err
	}
	rdataStart := buf.Len()

	if err := encodeRData(buf, rr, offsets); err != nil {
		return err
	}

	rdlen := buf.Len() - rdataStart
	if rdlen > 0xFFFF {
		return fmt.Errorf("%w: rdata for %s %s exceeds 65535 bytes", domain.ErrFormerrEncode, rr.Name, rr.Type)
	}
	binary.BigEndian.PutUint16(buf.Bytes()[rdlenOffset:rdlenOffset+2], uint16(rdlen))
	return nil
}
