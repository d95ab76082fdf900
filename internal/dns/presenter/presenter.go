// Package presenter renders a decoded domain.Message as human-readable
// text for the client driver. It is an external collaborator behind a
// narrow interface, not part of the wire codec or resolver core.
package presenter

import (
	"fmt"
	"strings"

	"github.com/haloarc/iterdns/internal/dns/domain"
)

// Presenter renders resolution outcomes for display.
type Presenter interface {
	Render(msg domain.Message) string
	RenderTimeout() string
	RenderError(err error) string
}

// DigPresenter renders a message in the style of the BIND `dig` tool:
// a header line, flag summary, section counts, then one line per
// record in each nonempty section.
type DigPresenter struct{}

// NewDigPresenter constructs the default Presenter.
func NewDigPresenter() *DigPresenter {
	return &DigPresenter{}
}

func (DigPresenter) Render(msg domain.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, ";; Got answer:\n")
	fmt.Fprintf(&b, ";; ->>HEADER<<- opcode: %s, status: %s, id: %d\n", opcodeString(msg.Header.Opcode), msg.Header.RCode, msg.Header.ID)
	fmt.Fprintf(&b, ";; flags:%s; QUERY: %d, ANSWER: %d, AUTHORITY: %d, ADDITIONAL: %d\n",
		flagString(msg.Header), msg.Header.QDCount, msg.Header.ANCount, msg.Header.NSCount, msg.Header.ARCount)

	if len(msg.Questions) > 0 {
		b.WriteString("\n;; QUESTION SECTION:\n")
		for _, q := range msg.Questions {
			fmt.Fprintf(&b, ";%s\t\t%s\t%s\n", q.Name, q.Class, q.Type)
		}
	}

	writeRRSection(&b, "ANSWER", msg.Answers)
	writeRRSection(&b, "AUTHORITY", msg.Authorities)
	writeRRSection(&b, "ADDITIONAL", msg.Additionals)

	return b.String()
}

func (DigPresenter) RenderTimeout() string {
	return ";; connection timed out; no servers could be reached"
}

func (DigPresenter) RenderError(err error) string {
	return fmt.Sprintf(";; error: %s", err)
}

func writeRRSection(b *strings.Builder, label string, rrs []domain.ResourceRecord) {
	if len(rrs) == 0 {
		return
	}
	fmt.Fprintf(b, "\n;; %s SECTION:\n", label)
	for _, rr := range rrs {
		fmt.Fprintf(b, "%s\t%d\t%s\t%s\t%s\n", rr.Name, rr.TTL, rr.Class, rrTypeLabel(rr), renderRData(rr))
	}
}

// rrTypeLabel prints an AAAA record's type mnemonic even though its
// rdata is never materialized (spec's IPv6-not-decoded non-goal).
func rrTypeLabel(rr domain.ResourceRecord) string {
	return rr.Type.String()
}

func renderRData(rr domain.ResourceRecord) string {
	if rr.Type == domain.RRTypeAAAA {
		return "<AAAA record, not decoded>"
	}
	return rr.RData.String()
}

func opcodeString(opcode uint8) string {
	switch opcode {
	case 0:
		return "QUERY"
	case 1:
		return "IQUERY"
	case 2:
		return "STATUS"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", opcode)
	}
}

func flagString(h domain.Header) string {
	var flags []string
	if h.QR {
		flags = append(flags, "qr")
	}
	if h.AA {
		flags = append(flags, "aa")
	}
	if h.TC {
		flags = append(flags, "tc")
	}
	if h.RD {
		flags = append(flags, "rd")
	}
	if h.RA {
		flags = append(flags, "ra")
	}
	if len(flags) == 0 {
		return ""
	}
	return " " + strings.Join(flags, " ")
}
