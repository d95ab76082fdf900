package domain

import "errors"

// ErrFormerrEncode is returned when a message cannot be encoded onto the
// wire because it violates a structural constraint (an oversized label
// or name, an unsupported type/class mnemonic). See RFC 1035 §4.1.1 rcode
// FORMERR for the wire-level analogue of this condition.
var ErrFormerrEncode = errors.New("formerr: malformed message on encode")

// ErrFormerrDecode is returned when bytes received from the wire cannot
// be parsed as a well-formed DNS message: a truncated header, a name
// pointer outside the message, a pointer cycle, a label with a reserved
// length-byte prefix, or RDATA shorter than its declared length.
var ErrFormerrDecode = errors.New("formerr: malformed message on decode")
