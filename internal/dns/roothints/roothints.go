// Package roothints loads the IANA named.root hints file into an ordered
// list of root server IPv4 addresses that seed the resolver's referral
// chase at startup.
package roothints

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/haloarc/iterdns/internal/dns/common/log"
)

// Load parses a named.root-format file at path into an ordered list of
// IPv4 addresses, filtering out AAAA records, in file order. An empty
// result is a fatal startup error, not an empty slice silently returned.
func Load(path string, logger log.Logger) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening root hints file %q: %w", path, err)
	}
	defer f.Close()

	ips, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing root hints file %q: %w", path, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("root hints file %q contains no usable A records", path)
	}

	logger.Info(map[string]any{"path": path, "count": len(ips)}, "loaded root hints")
	return ips, nil
}

// parse reads named.root-format lines from r: "NAME TTL TYPE VALUE",
// where ';' starts a comment and blank lines are skipped. Only A records
// contribute to the result; AAAA and anything else (NS owner lines, SOA,
// etc.) are parsed but not surfaced, matching the source's "skip AAAA"
// filter.
func parse(r io.Reader) ([]string, error) {
	var ips []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		recordType := strings.ToUpper(fields[2])
		value := fields[3]
		if recordType == "A" {
			ips = append(ips, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ips, nil
}
