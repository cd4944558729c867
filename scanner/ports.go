package scanner

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ParsePorts parses a port specification and returns a sorted, deduplicated
// slice of ports. Supported forms:
//   - single: "22"
//   - list: "22,80,443"
//   - range: "1-1024"
//   - mixed: "22,80,8000-8100"
func ParsePorts(spec string) ([]uint16, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("empty port spec")
	}

	seen := make(map[uint16]struct{})
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, errors.New("invalid empty token in port spec")
		}

		if lo, hi, isRange := strings.Cut(token, "-"); isRange {
			start, err := parsePort(lo)
			if err != nil {
				return nil, err
			}
			end, err := parsePort(hi)
			if err != nil {
				return nil, err
			}
			if start > end {
				return nil, fmt.Errorf("range start greater than end: %s", token)
			}
			for p := int(start); p <= int(end); p++ {
				seen[uint16(p)] = struct{}{}
			}
			continue
		}

		p, err := parsePort(token)
		if err != nil {
			return nil, err
		}
		seen[p] = struct{}{}
	}

	ports := make([]uint16, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	slices.Sort(ports)
	return ports, nil
}

// ParseRange expands an inclusive start..end range.
func ParseRange(start, end int) ([]uint16, error) {
	if start < 1 || start > 65535 || end < 1 || end > 65535 {
		return nil, errors.New("port numbers must be in 1..65535")
	}
	if start > end {
		return nil, errors.New("start port must be less than or equal to end port")
	}
	ports := make([]uint16, 0, end-start+1)
	for p := start; p <= end; p++ {
		ports = append(ports, uint16(p))
	}
	return ports, nil
}

func parsePort(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port is not a number: %q", s)
	}
	if v < 1 || v > 65535 {
		return 0, fmt.Errorf("port numbers must be in 1..65535, got %d", v)
	}
	return uint16(v), nil
}
