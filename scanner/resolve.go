package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrResolve marks a failure to turn a user-supplied host into an address.
var ErrResolve = errors.New("cannot resolve host")

// ResolveHost returns a connectable IP for host. IP literals are returned as
// is; names prefer the first IPv4 answer and fall back to IPv6.
func ResolveHost(ctx context.Context, host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrResolve)
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrResolve, host, err)
	}

	var firstV6 net.IP
	for _, addr := range addrs {
		if v4 := addr.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
		if firstV6 == nil {
			firstV6 = addr.IP
		}
	}
	if firstV6 != nil {
		return firstV6.String(), nil
	}
	return "", fmt.Errorf("%w %q: no addresses found", ErrResolve, host)
}
