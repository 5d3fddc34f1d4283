// Package identity loads the daemon's optional signing key and
// certificate from PEM files named in the configuration snapshot. Both
// are read once at startup and shared read-only across every worker.
package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// Load reads an RSA private key from keyPath (PKCS#1 or PKCS#8 PEM) and,
// if certPath is non-empty, an X.509 certificate from certPath. Either
// path may be empty, in which case the corresponding return value is
// nil: sys-meta signing is simply skipped for that record.
func Load(keyPath, certPath string) (*rsa.PrivateKey, *x509.Certificate, error) {
	var (
		key  *rsa.PrivateKey
		cert *x509.Certificate
		err  error
	)

	if keyPath != "" {
		key, err = loadPrivateKey(keyPath)
		if err != nil {
			return nil, nil, fmt.Errorf("identity: load private key: %w", err)
		}
	}

	if certPath != "" {
		cert, err = loadCertificate(certPath)
		if err != nil {
			return nil, nil, fmt.Errorf("identity: load certificate: %w", err)
		}
	}

	return key, cert, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rsaKey, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: private key is not RSA", path)
	}
	return rsaKey, nil
}

func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cert, nil
}
