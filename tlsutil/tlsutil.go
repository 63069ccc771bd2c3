// Package tlsutil builds the TLS configurations used by the Coordinator
// and its clients. Per spec.md §9's documented trust model, the same PEM
// serves as both the server's certificate and the client's trust anchor,
// and hostname verification is disabled — appropriate only for the
// self-signed default deployment the spec describes.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// ServerConfig loads certPath (containing both certificate and private
// key, PEM-encoded) for use by the Coordinator's listener.
func ServerConfig(certPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, certPath)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: load server cert %s: %w", certPath, err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// ClientConfig loads certPath as the sole trust anchor and disables
// hostname verification while still validating the certificate chain
// against it, matching the reference client's trust model.
func ClientConfig(certPath string) (*tls.Config, error) {
	pem, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: read %s: %w", certPath, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("tlsutil: no certificates found in %s", certPath)
	}

	cfg := &tls.Config{
		RootCAs:            pool,
		InsecureSkipVerify: true,
	}
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs := make([]*x509.Certificate, len(rawCerts))
		for i, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("tlsutil: parse peer certificate: %w", err)
			}
			certs[i] = cert
		}
		opts := x509.VerifyOptions{Roots: pool}
		for _, intermediate := range certs[1:] {
			if opts.Intermediates == nil {
				opts.Intermediates = x509.NewCertPool()
			}
			opts.Intermediates.AddCert(intermediate)
		}
		_, err := certs[0].Verify(opts)
		return err
	}
	return cfg, nil
}
