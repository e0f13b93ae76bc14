package wren

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"strings"
	"testing"
	"time"
)

// generateTestTLSConfig creates a self-signed certificate for
// 127.0.0.1.
func generateTestTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{der},
			PrivateKey:  key,
		}},
	}
}

func TestStartTLSAdvertised(t *testing.T) {
	_, addr := startTestServer(t, Config{TLSConfig: generateTestTLSConfig(t)})
	c := newTestClient(t, addr)
	defer c.close()
	c.expectCode(220)

	c.send("EHLO client")
	lines := c.expectMultilineCode(250)
	if !strings.Contains(strings.Join(lines, "\n"), "STARTTLS") {
		t.Errorf("STARTTLS not advertised: %v", lines)
	}
}

func TestStartTLSHidden(t *testing.T) {
	_, addr := startTestServer(t, Config{
		TLSConfig: generateTestTLSConfig(t),
		HideTLS:   true,
	})
	c := newTestClient(t, addr)
	defer c.close()
	c.expectCode(220)

	c.send("EHLO client")
	lines := c.expectMultilineCode(250)
	if strings.Contains(strings.Join(lines, "\n"), "STARTTLS") {
		t.Errorf("STARTTLS advertised despite HideTLS: %v", lines)
	}
}

func TestStartTLSWithoutConfig(t *testing.T) {
	_, addr := startTestServer(t, Config{})
	c := newTestClient(t, addr)
	defer c.close()
	c.expectCode(220)

	c.send("STARTTLS")
	reply := c.expectCode(454)
	if reply != "454 TLS not supported" {
		t.Errorf("unexpected reply: %s", reply)
	}
}

func TestStartTLSRejectsParameters(t *testing.T) {
	_, addr := startTestServer(t, Config{TLSConfig: generateTestTLSConfig(t)})
	c := newTestClient(t, addr)
	defer c.close()
	c.expectCode(220)

	c.send("STARTTLS now")
	reply := c.expectCode(501)
	if reply != "501 Syntax error (no parameters allowed)" {
		t.Errorf("unexpected reply: %s", reply)
	}
}

func TestStartTLSUpgrade(t *testing.T) {
	backend := &testBackend{}
	_, addr := startTestServer(t, Config{
		TLSConfig:             generateTestTLSConfig(t),
		Delivery:              backend,
		DisableReceivedHeader: true,
	})
	c := newTestClient(t, addr)
	defer c.close()
	c.expectCode(220)
	c.send("EHLO client")
	c.expectMultilineCode(250)

	c.send("STARTTLS")
	reply := c.expectCode(220)
	if reply != "220 Ready to start TLS" {
		t.Errorf("unexpected reply: %s", reply)
	}

	tlsConn := tls.Client(c.conn, &tls.Config{InsecureSkipVerify: true})
	if err := tlsConn.Handshake(); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	c.conn = tlsConn
	c.reader = bufio.NewReader(tlsConn)

	c.send("EHLO client")
	c.expectMultilineCode(250)
	transact(c, "a@example.com", "b@example.com")
	c.send("DATA")
	c.expectCode(354)
	c.sendRaw([]byte("over TLS\r\n.\r\n"))
	c.expectCode(250)

	messages := backend.captured()
	if len(messages) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(messages))
	}
	if !messages[0].Info.TLS {
		t.Error("session info should report TLS")
	}

	// A second STARTTLS is refused.
	c.send("STARTTLS")
	reply = c.expectCode(454)
	if reply != "454 TLS not available due to temporary reason: TLS already active" {
		t.Errorf("unexpected reply: %s", reply)
	}
}

func TestEnforceTLSGatesMailPath(t *testing.T) {
	_, addr := startTestServer(t, Config{
		TLSConfig:  generateTestTLSConfig(t),
		EnforceTLS: true,
	})
	c := newTestClient(t, addr)
	defer c.close()
	c.expectCode(220)
	c.send("EHLO client")
	c.expectMultilineCode(250)

	c.send("MAIL FROM:<a@example.com>")
	reply := c.expectCode(530)
	if reply != "530 Must issue a STARTTLS command first" {
		t.Errorf("unexpected reply: %s", reply)
	}

	c.send("NOOP")
	c.expectCode(250)
}
