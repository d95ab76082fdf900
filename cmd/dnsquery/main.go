// Command dnsquery is a one-shot stub DNS client: it builds a single
// query, sends it to a resolver over UDP, waits for a reply, and prints
// a dig-style rendering of the result.
package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/haloarc/iterdns/internal/dns/common/log"
	"github.com/haloarc/iterdns/internal/dns/config"
	"github.com/haloarc/iterdns/internal/dns/domain"
	"github.com/haloarc/iterdns/internal/dns/presenter"
	"github.com/haloarc/iterdns/internal/dns/wire"
)

const appName = "dnsquery"

// fixedTestID is used by deterministic test fixtures and as the fallback
// ID when crypto/rand cannot seed randomTransactionID; otherwise
// production queries use a randomized transaction ID (spec.md open
// question #1).
const fixedTestID uint16 = 0xABCE

func main() {
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Usage: %s <resolver_ip> <resolver_port> <name> <type> [timeout_seconds=10]\n%v\n", appName, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) < 6 {
		args.timeout = time.Duration(cfg.Client.TimeoutSeconds) * time.Second
	}

	logger := log.GetLogger()
	codec := wire.NewCodec(logger)
	p := presenter.NewDigPresenter()

	output, err := run(args, codec, p)
	fmt.Println(output)
	if err != nil {
		os.Exit(1)
	}
}

// cliArgs holds the validated positional arguments from spec.md §6.
type cliArgs struct {
	resolverIP   string
	resolverPort int
	name         string
	qtype        domain.RRType
	timeout      time.Duration
}

func parseArgs(args []string) (cliArgs, error) {
	if len(args) < 4 {
		return cliArgs{}, fmt.Errorf("expected at least 4 arguments, got %d", len(args))
	}

	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		return cliArgs{}, fmt.Errorf("invalid resolver_port %q", args[1])
	}

	qtypeStr := toUpper(args[3])
	qtype := domain.RRTypeFromString(qtypeStr)
	if !qtype.IsValid() {
		return cliArgs{}, fmt.Errorf("unrecognized type mnemonic %q", args[3])
	}

	timeoutSeconds := 10
	if len(args) >= 5 {
		timeoutSeconds, err = strconv.Atoi(args[4])
		if err != nil || timeoutSeconds < 1 {
			return cliArgs{}, fmt.Errorf("invalid timeout_seconds %q", args[4])
		}
	}

	return cliArgs{
		resolverIP:   args[0],
		resolverPort: port,
		name:         args[2],
		qtype:        qtype,
		timeout:      time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// run performs the full query/send/await/decode/present cycle and
// returns the text to print plus any error that should drive a
// nonzero exit (spec.md §6: argument errors and local timeouts exit
// nonzero, rcode errors still exit zero).
func run(args cliArgs, codec *wire.Codec, p presenter.Presenter) (string, error) {
	qname := args.name
	if args.qtype == domain.RRTypePTR {
		reversed, err := wire.EncodePTRQuestion(args.name)
		if err != nil {
			return p.RenderError(err), err
		}
		qname = reversed
	}

	q, err := domain.NewQuestion(randomTransactionID(), qname, args.qtype, domain.RRClassIN)
	if err != nil {
		return p.RenderError(err), err
	}

	payload, err := codec.EncodeQuery(q, false)
	if err != nil {
		return p.RenderError(err), err
	}

	conn, err := net.Dial("udp", net.JoinHostPort(args.resolverIP, strconv.Itoa(args.resolverPort)))
	if err != nil {
		return p.RenderError(err), err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(args.timeout)); err != nil {
		return p.RenderError(err), err
	}
	if _, err := conn.Write(payload); err != nil {
		return p.RenderError(err), err
	}

	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		return p.RenderTimeout(), err
	}

	// The resolver's exhaustion sentinel and any truncated datagram
	// both look identical to the client: fewer than 12 header bytes.
	if n < 12 {
		return p.RenderTimeout(), fmt.Errorf("reply too short (%d bytes)", n)
	}

	msg, err := codec.DecodeMessage(buf[:n])
	if err != nil {
		return p.RenderError(err), err
	}

	return p.Render(msg), nil
}

// randomTransactionID picks a crypto/rand-seeded pseudo-random 16-bit ID
// so concurrent dnsquery invocations don't collide.
func randomTransactionID() uint16 {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return fixedTestID
	}
	r := rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:]), 0))
	return uint16(r.Uint32())
}
