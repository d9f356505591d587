// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

const (
	fetchTimeout = 30 * time.Second
	maxRedirects = 5
)

// errBlockedAddress is returned when a shopper URL resolves to an address
// inside the service's own network.
var errBlockedAddress = errors.New("address not allowed")

// publicAddress rejects loopback, private, link-local, multicast and
// unspecified addresses.
func publicAddress(ip netip.Addr) error {
	ip = ip.Unmap()
	if !ip.IsValid() || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", errBlockedAddress, ip)
	}
	return nil
}

// dialControl runs after name resolution for every connection, redirects
// included, so the check sees the address actually dialled.
func dialControl(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedAddress, address)
	}
	return publicAddress(ap.Addr())
}

// newFetcher returns the HTTP client used for URL uploads. It refuses to
// connect to non-public addresses and does not honour proxy settings,
// which would hide the final address from the dialer.
func newFetcher() *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: dialControl,
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Timeout:   fetchTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to %s scheme", req.URL.Scheme)
			}
			return nil
		},
	}
}
