package transfer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aokellermann/securedrop-go/cryptoutil"
)

// testTLSConfigs generates a throwaway self-signed certificate and returns
// a server config carrying it plus a client config that skips certificate
// verification entirely (InsecureSkipVerify), so hostname checks are off
// as in spec.md §6's deployment model.
func testTLSConfigs(t *testing.T) (server, client *tls.Config) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		t.Fatal(err)
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}

	return &tls.Config{Certificates: []tls.Certificate{cert}},
		&tls.Config{InsecureSkipVerify: true}
}

func runTransfer(t *testing.T, content []byte) (outputPath string, sendErr, recvErr error) {
	t.Helper()

	serverTLS, clientTLS := testTLSConfigs(t)

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input")
	if err := os.WriteFile(inputPath, content, 0o600); err != nil {
		t.Fatal(err)
	}
	outputPath = filepath.Join(dir, "output")

	recv, err := Listen(serverTLS, nil)
	if err != nil {
		t.Fatal(err)
	}
	addr := fmt.Sprintf("127.0.0.1:%d", recv.Port())

	const token = "test-token"
	recvProgress := NewProgress(0)
	sendProgress := NewProgress(0)

	recvDone := make(chan error, 1)
	go func() {
		recvDone <- recv.Accept(token, outputPath, recvProgress)
	}()

	sendErr = Send(context.Background(), addr, clientTLS, inputPath, token, sendProgress, nil)
	recvErr = <-recvDone
	return outputPath, sendErr, recvErr
}

func TestTransferRoundTripSmallFile(t *testing.T) {
	outputPath, sendErr, recvErr := runTransfer(t, []byte("hello\nworld"))
	if sendErr != nil {
		t.Fatalf("send: %v", sendErr)
	}
	if recvErr != nil {
		t.Fatalf("receive: %v", recvErr)
	}
	got, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("hello\nworld")) {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestTransferBoundaryFileSizes(t *testing.T) {
	cases := map[string]int{
		"empty":             0,
		"one-chunk":         ChunkSize,
		"one-chunk-plus-one": ChunkSize + 1,
	}
	for name, size := range cases {
		t.Run(name, func(t *testing.T) {
			data := make([]byte, size)
			for i := range data {
				data[i] = byte(i)
			}
			outputPath, sendErr, recvErr := runTransfer(t, data)
			if sendErr != nil {
				t.Fatalf("send: %v", sendErr)
			}
			if recvErr != nil {
				t.Fatalf("receive: %v", recvErr)
			}
			got, err := os.ReadFile(outputPath)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("content mismatch for %s", name)
			}
			hash, err := cryptoutil.HashFile(outputPath)
			if err != nil {
				t.Fatal(err)
			}
			want, _ := cryptoutil.HashReader(bytes.NewReader(data))
			if hash != want {
				t.Fatalf("hash mismatch for %s", name)
			}
		})
	}
}

func TestReceiverRejectsExistingOutputPath(t *testing.T) {
	serverTLS, _ := testTLSConfigs(t)
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "output")
	if err := os.WriteFile(outputPath, []byte("already here"), 0o600); err != nil {
		t.Fatal(err)
	}

	recv, err := Listen(serverTLS, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer recv.Close()

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", recv.Port()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := recv.Accept("tok", outputPath, nil); err == nil {
		t.Fatal("expected error for pre-existing output path")
	}
}
