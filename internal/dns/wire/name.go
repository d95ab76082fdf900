package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/haloarc/iterdns/internal/dns/domain"
)

const (
	maxLabelLength = 63
	maxNameLength  = 255
)

// decodeName decodes a domain name starting at offset, against the full
// message so compression pointers can jump anywhere. visited tracks the
// offsets this particular name resolution has already jumped to or started
// from; a pointer targeting a visited offset is a cycle and fails with
// ErrFormerrDecode instead of looping forever. It returns the decoded
// fully-qualified name and the offset immediately following the name's own
// bytes in the stream the caller is reading (i.e. not following into a
// pointer target).
func decodeName(data []byte, offset int, visited map[int]struct{}) (string, int, error) {
	var labels []string
	cursor := offset
	finalOffset := -1
	uncompressedLen := 0
	visited[offset] = struct{}{}

	for {
		if cursor >= len(data) {
			return "", 0, fmt.Errorf("%w: name offset %d out of bounds", domain.ErrFormerrDecode, cursor)
		}
		length := data[cursor]

		switch {
		case length == 0:
			cursor++
			if finalOffset == -1 {
				finalOffset = cursor
			}
			if len(labels) == 0 {
				return ".", finalOffset, nil
			}
			return strings.Join(labels, ".") + ".", finalOffset, nil

		case length&0xC0 == 0xC0:
			if cursor+1 >= len(data) {
				return "", 0, fmt.Errorf("%w: truncated compression pointer at %d", domain.ErrFormerrDecode, cursor)
			}
			ptr := int(binary.BigEndian.Uint16(data[cursor:cursor+2]) & 0x3FFF)
			if finalOffset == -1 {
				finalOffset = cursor + 2
			}
			if _, seen := visited[ptr]; seen {
				return "", 0, fmt.Errorf("%w: compression pointer cycle at offset %d", domain.ErrFormerrDecode, ptr)
			}
			visited[ptr] = struct{}{}
			cursor = ptr

		case length&0xC0 != 0:
			return "", 0, fmt.Errorf("%w: reserved label length prefix 0x%02x at offset %d", domain.ErrFormerrDecode, length, cursor)

		default:
			l := int(length)
			cursor++
			if cursor+l > len(data) {
				return "", 0, fmt.Errorf("%w: label extends past end of message", domain.ErrFormerrDecode)
			}
			uncompressedLen += l + 1
			if uncompressedLen > maxNameLength {
				return "", 0, fmt.Errorf("%w: name exceeds %d octets", domain.ErrFormerrDecode, maxNameLength)
			}
			labels = append(labels, string(data[cursor:cursor+l]))
			cursor += l
		}
	}
}

// encodeName writes name in wire format to buf. offsets records the
// absolute message offset at which each previously-encoded name started,
// so a repeated name compresses to a 2-byte pointer instead of repeating
// labels (RFC 1035 §4.1.4). Only offsets that fit the 14-bit pointer field
// are eligible for reuse or for recording.
func encodeName(buf *bytes.Buffer, name string, offsets map[string]int) error {
	trimmed := strings.TrimSuffix(name, ".")
	if len(trimmed) > maxNameLength {
		return fmt.Errorf("%w: name %q exceeds %d octets", domain.ErrFormerrEncode, name, maxNameLength)
	}

	if off, ok := offsets[trimmed]; ok && trimmed != "" && off <= 0x3FFF {
		buf.WriteByte(0xC0 | byte(off>>8))
		buf.WriteByte(byte(off))
		return nil
	}

	startOffset := buf.Len()
	if trimmed == "" {
		buf.WriteByte(0)
		return nil
	}

	for _, label := range strings.Split(trimmed, ".") {
		if len(label) > maxLabelLength {
			return fmt.Errorf("%w: label %q exceeds %d octets", domain.ErrFormerrEncode, label, maxLabelLength)
		}
		buf.WriteByte(byte(len(label)))
		buf.WriteString(label)
	}
	buf.WriteByte(0)

	if startOffset <= 0x3FFF {
		offsets[trimmed] = startOffset
	}
	return nil
}
