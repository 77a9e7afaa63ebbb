// Package tlstest issues throwaway certificates for loopback TLS tests.
package tlstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Pair is a PEM certificate and key written to disk.
type Pair struct {
	CertFile string
	KeyFile  string
}

// Authority is an in-test CA whose files live in the test's temp dir.
type Authority struct {
	cert   *x509.Certificate
	key    *ecdsa.PrivateKey
	dir    string
	caPath string
}

func NewAuthority(t testing.TB, commonName string) *Authority {
	t.Helper()

	dir := t.TempDir()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create ca cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse ca cert: %v", err)
	}

	caPath := filepath.Join(dir, "ca.crt")
	if err := writePEM(caPath, "CERTIFICATE", der, 0o644); err != nil {
		t.Fatalf("write ca cert: %v", err)
	}
	return &Authority{cert: cert, key: key, dir: dir, caPath: caPath}
}

func (a *Authority) CAFile() string {
	return a.caPath
}

// IssueLoopbackServer issues a server certificate valid for 127.0.0.1 and
// localhost.
func (a *Authority) IssueLoopbackServer(t testing.TB, commonName string) Pair {
	t.Helper()
	return a.issue(t, commonName, x509.ExtKeyUsageServerAuth, []string{"localhost"}, []net.IP{net.ParseIP("127.0.0.1")})
}

func (a *Authority) IssueClient(t testing.TB, commonName string) Pair {
	t.Helper()
	return a.issue(t, commonName, x509.ExtKeyUsageClientAuth, nil, nil)
}

func (a *Authority) issue(t testing.TB, commonName string, usage x509.ExtKeyUsage, dnsNames []string, ips []net.IP) Pair {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(now.UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{usage},
		DNSNames:     dnsNames,
		IPAddresses:  ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, a.cert, &key.PublicKey, a.key)
	if err != nil {
		t.Fatalf("create signed cert: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	base := sanitize(commonName)
	pair := Pair{
		CertFile: filepath.Join(a.dir, base+".crt"),
		KeyFile:  filepath.Join(a.dir, base+".key"),
	}
	if err := writePEM(pair.CertFile, "CERTIFICATE", der, 0o644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := writePEM(pair.KeyFile, "EC PRIVATE KEY", keyDER, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return pair
}

func writePEM(path string, blockType string, der []byte, perm os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	return os.WriteFile(path, data, perm)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "cert"
	}
	return strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(s)
}
