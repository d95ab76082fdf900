package domain

import (
	"fmt"
	"strings"
)

// RDataKind discriminates the tagged RDATA variants a ResourceRecord can
// carry. Only A, NS/CNAME/PTR (RDataName), and MX are decoded into typed
// fields; everything else (TXT, SOA, AAAA, and any unrecognized type)
// round-trips through Raw untouched.
type RDataKind uint8

const (
	// RDataRaw carries undecoded wire bytes: TXT, SOA, AAAA, and any
	// type this resolver does not need to inspect.
	RDataRaw RDataKind = iota
	// RDataA is a 4-octet IPv4 address, rendered dotted-quad.
	RDataA
	// RDataName is a single domain name: NS, CNAME, or PTR rdata.
	RDataName
	// RDataMX is a (preference, exchange) pair.
	RDataMX
)

// RData is a tagged union over the RDATA shapes this resolver decodes.
// Raw always holds the original wire bytes regardless of Kind, so a
// record can be re-encoded byte-for-byte even when only Raw was parsed.
type RData struct {
	Kind       RDataKind
	IP         string // RDataA: dotted-quad IPv4
	Name       string // RDataName: NS/CNAME/PTR target
	Preference uint16 // RDataMX: preference
	Exchange   string // RDataMX: exchange name
	Raw        []byte // wire bytes for this rdata, all kinds
}

// String renders the RDATA in a dig-style presentation form.
func (d RData) String() string {
	switch d.Kind {
	case RDataA:
		return d.IP
	case RDataName:
		return d.Name
	case RDataMX:
		return fmt.Sprintf("%d %s", d.Preference, d.Exchange)
	default:
		return fmt.Sprintf("\\# %d", len(d.Raw))
	}
}

// ResourceRecord represents a DNS resource record: (name, type, class,
// ttl, rdata). It is the decoded form used throughout the resolver and
// client; the wire package is the only place that knows how to turn one
// of these into bytes and back.
type ResourceRecord struct {
	Name  string
	Type  RRType
	Class RRClass
	TTL   uint32
	RData RData
}

// NewResourceRecord constructs a ResourceRecord and validates its fields.
func NewResourceRecord(name string, rrtype RRType, class RRClass, ttl uint32, rdata RData) (ResourceRecord, error) {
	rr := ResourceRecord{
		Name:  canonicalName(name),
		Type:  rrtype,
		Class: class,
		TTL:   ttl,
		RData: rdata,
	}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// Validate checks whether the ResourceRecord fields are structurally valid.
// Type is deliberately not restricted to the recognized set here: unknown
// wire types round-trip as raw RDATA (spec'd behavior), so any uint16 type
// code is a structurally valid record. IsValid on RRType instead governs
// question/query construction, where the resolver picks the type itself.
func (rr ResourceRecord) Validate() error {
	if rr.Name == "" {
		return fmt.Errorf("record name must not be empty")
	}
	if !rr.Class.IsValid() {
		return fmt.Errorf("invalid RRClass: %d", rr.Class)
	}
	return nil
}

// IsGlue reports whether this record is an A record usable as a referral
// glue address: the only RDATA shape the resolver's candidate-extraction
// logic cares about (spec'd non-goal: no AAAA glue).
func (rr ResourceRecord) IsGlue() bool {
	return rr.Type == RRTypeA && rr.RData.Kind == RDataA && rr.RData.IP != ""
}

// canonicalName ensures a trailing dot, matching the fully-qualified form
// the wire decoder always produces.
func canonicalName(name string) string {
	if name == "" || strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}
