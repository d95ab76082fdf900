package domain

import "fmt"

// RCode represents a DNS response code indicating the result of a query.
type RCode uint8

// Named constants for the rcodes this resolver branches on directly.
// The remaining wire values (YXDOMAIN, YXRRSET, NXRRSET, NOTAUTH,
// NOTZONE) are recognized by String/ParseRCode but never drive
// resolver behavior, so they are left as literals there.
const (
	RCodeNoError  RCode = 0
	RCodeFormErr  RCode = 1
	RCodeServFail RCode = 2
	RCodeNXDomain RCode = 3
	RCodeNotImp   RCode = 4
	RCodeRefused  RCode = 5
)

// IsValid returns true if the RCode fits the 4-bit wire field (RFC 1035 §4.1.1).
// The decoder must tolerate any value in range, not just the rcodes this
// resolver assigns special handling to (NOERROR, FORMERR, SERVFAIL,
// NXDOMAIN, NOTIMP, REFUSED).
func (r RCode) IsValid() bool {
	return r <= 15
}

// String returns the textual representation of the RCode.
func (r RCode) String() string {
	switch r {
	case 0:
		return "NOERROR"
	case 1:
		return "FORMERR"
	case 2:
		return "SERVFAIL"
	case 3:
		return "NXDOMAIN"
	case 4:
		return "NOTIMP"
	case 5:
		return "REFUSED"
	case 6:
		return "YXDOMAIN"
	case 7:
		return "YXRRSET"
	case 8:
		return "NXRRSET"
	case 9:
		return "NOTAUTH"
	case 10:
		return "NOTZONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", r)
	}
}

// ParseRCode converts a string name to an RCode value.
func ParseRCode(s string) RCode {
	switch s {
	case "NOERROR":
		return 0
	case "FORMERR":
		return 1
	case "SERVFAIL":
		return 2
	case "NXDOMAIN":
		return 3
	case "NOTIMP":
		return 4
	case "REFUSED":
		return 5
	case "YXDOMAIN":
		return 6
	case "YXRRSET":
		return 7
	case "NXRRSET":
		return 8
	case "NOTAUTH":
		return 9
	case "NOTZONE":
		return 10
	default:
		return 0
	}
}
