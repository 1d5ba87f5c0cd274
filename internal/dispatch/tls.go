package dispatch

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// directRoundTripper builds the no-proxy transport. Connections to
// fingerprintHost get a utls Chrome ClientHello over HTTP/2; every other
// host on the same HTTP/2 transport gets a standard crypto/tls handshake,
// since generic upstream hosts don't care about TLS fingerprint and forcing
// utls on every destination would be needless surface. With no
// fingerprintHost at all, a plain net/http transport is used.
func directRoundTripper(fingerprintHost string) http.RoundTripper {
	if fingerprintHost == "" {
		return &http.Transport{}
	}
	return &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
			if !fingerprintMatches(fingerprintHost, addr) {
				return (&tls.Dialer{Config: cfg}).DialContext(ctx, network, addr)
			}
			return dialUTLS(ctx, network, addr)
		},
	}
}

// dialUTLS dials addr and performs a Chrome-fingerprinted TLS handshake.
func dialUTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	rawConn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return uTLSHandshake(ctx, rawConn, host)
}

// dialUTLSViaConn wraps an already-established connection (typically from a
// proxy tunnel) with the same Chrome-fingerprinted handshake.
func dialUTLSViaConn(ctx context.Context, rawConn net.Conn, serverName string) (net.Conn, error) {
	return uTLSHandshake(ctx, rawConn, serverName)
}

func uTLSHandshake(ctx context.Context, rawConn net.Conn, serverName string) (net.Conn, error) {
	tlsConn := utls.UClient(rawConn, &utls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}, utls.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
