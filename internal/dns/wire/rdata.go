package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/haloarc/iterdns/internal/dns/domain"
)

// decodeRData parses the RDATA of a resource record according to its type,
// per spec §4.1: A decodes to a dotted-quad, NS/CNAME/PTR to a single
// (possibly compressed) name, MX to a preference plus a compressed name,
// and everything else - including AAAA - is retained as opaque bytes. raw
// always holds the rdata's wire bytes regardless of how it was parsed, so
// round-tripping an unrecognized type never loses information.
func decodeRData(data []byte, offset, rdlen int, rrtype domain.RRType) (domain.RData, error) {
	if offset+rdlen > len(data) {
		return domain.RData{}, fmt.Errorf("%w: rdata shorter than rdlength", domain.ErrFormerrDecode)
	}
	raw := append([]byte(nil), data[offset:offset+rdlen]...)

	switch rrtype {
	case domain.RRTypeA:
		if rdlen != 4 {
			return domain.RData{}, fmt.Errorf("%w: A record rdata must be 4 octets, got %d", domain.ErrFormerrDecode, rdlen)
		}
		return domain.RData{Kind: domain.RDataA, IP: net.IP(raw).String(), Raw: raw}, nil

	case domain.RRTypeNS, domain.RRTypeCNAME, domain.RRTypePTR:
		name, _, err := decodeName(data, offset, map[int]struct{}{})
		if err != nil {
			return domain.RData{}, err
		}
		return domain.RData{Kind: domain.RDataName, Name: name, Raw: raw}, nil

	case domain.RRTypeMX:
		if rdlen < 3 {
			return domain.RData{}, fmt.Errorf("%w: MX rdata too short (%d bytes)", domain.ErrFormerrDecode, rdlen)
		}
		pref := binary.BigEndian.Uint16(data[offset : offset+2])
		exchange, _, err := decodeName(data, offset+2, map[int]struct{}{})
		if err != nil {
			return domain.RData{}, err
		}
		return domain.RData{Kind: domain.RDataMX, Preference: pref, Exchange: exchange, Raw: raw}, nil

	default:
		// AAAA and any unrecognized type: consumed but not materialized.
		return domain.RData{Kind: domain.RDataRaw, Raw: raw}, nil
	}
}

// encodeRData writes a record's RDATA to buf according to its tagged kind.
func encodeRData(buf *bytes.Buffer, rr domain.ResourceRecord, offsets map[string]int) error {
	switch rr.RData.Kind {
	case domain.RDataA:
		ip := net.ParseIP(rr.RData.IP).To4()
		if ip == nil {
			return fmt.Errorf("%w: invalid IPv4 address %q", domain.ErrFormerrEncode, rr.RData.IP)
		}
		buf.Write(ip)
		return nil

	case domain.RDataName:
		return encodeName(buf, rr.RData.Name, offsets)

	case domain.RDataMX:
		if err := binary.Write(buf, binary.BigEndian, rr.RData.Preference); err != nil {
			return err
		}
		return encodeName(buf, rr.RData.Exchange, offsets)

	default:
		buf.Write(rr.RData.Raw)
		return nil
	}
}
