package kubeadm

import (
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// ErrCACertHashMismatch means the CA presented by the cluster is not the pinned one.
var ErrCACertHashMismatch = errors.New("CA certificate does not match pinned hash")

// ComputeCACertHash returns the kubeadm discovery hash of the first certificate
// in caPEM: SHA-256 over its SubjectPublicKeyInfo.
func ComputeCACertHash(caPEM []byte) (string, error) {
	certs, err := parseCertificates(caPEM)
	if err != nil {
		return "", err
	}
	return hashCertificate(certs[0]), nil
}

// VerifyCACertHash checks that one of the certificates in caPEM matches the
// pinned hash. Any parse failure or malformed pin is an error.
func VerifyCACertHash(caPEM []byte, pinned string) error {
	if err := ValidateCACertHash(pinned); err != nil {
		return err
	}
	certs, err := parseCertificates(caPEM)
	if err != nil {
		return err
	}

	want := []byte(strings.ToLower(pinned))
	var got []string
	for _, cert := range certs {
		h := hashCertificate(cert)
		if subtle.ConstantTimeCompare([]byte(h), want) == 1 {
			return nil
		}
		got = append(got, h)
	}
	return fmt.Errorf("%w: pinned %s, cluster presented %s", ErrCACertHashMismatch, pinned, strings.Join(got, ", "))
}

func hashCertificate(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return CACertHashPrefix + hex.EncodeToString(sum[:])
}

func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no PEM certificate found in CA data")
	}
	return certs, nil
}
