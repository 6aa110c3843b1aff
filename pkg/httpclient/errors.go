package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for fetch failure modes. Callers should use errors.Is().
var (
	// ErrStatus indicates a non-2xx response.
	ErrStatus = errors.New("httpclient: unexpected status")

	// ErrTooLarge indicates the body exceeded the configured limit.
	ErrTooLarge = errors.New("httpclient: response too large")

	// ErrDNS indicates a DNS resolution failure for the target host.
	ErrDNS = errors.New("httpclient: DNS resolution failed")

	// ErrTLS indicates a TLS handshake or certificate verification failure.
	ErrTLS = errors.New("httpclient: TLS handshake failed")
)

// classify wraps transport errors with the matching sentinel.
func classify(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrDNS, err)
	}
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) || errors.As(err, &recErr) {
		return fmt.Errorf("%w: %v", ErrTLS, err)
	}
	return err
}
