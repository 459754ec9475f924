//go:build integration
// +build integration

package sshpool

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jmagar/scout-mcp-sub004/pkg/host"
)

// testContainer holds a reusable SSH container for integration tests.
type testContainer struct {
	container testcontainers.Container
	record    *host.Record
}

var (
	testContainerOnce sync.Once
	testContainerInst *testContainer
	testContainerErr  error
)

// getTestContainer returns a shared SSH container for all integration tests.
func getTestContainer(t *testing.T) *testContainer {
	t.Helper()

	testContainerOnce.Do(func() {
		ctx := context.Background()

		privateKeyPEM, keyPath := generateSharedKey()
		if keyPath == "" {
			testContainerErr = fmt.Errorf("failed to write private key")
			return
		}

		req := testcontainers.ContainerRequest{
			Image:        "linuxserver/openssh-server:latest",
			ExposedPorts: []string{"2222/tcp"},
			Env: map[string]string{
				"PUID":            "1000",
				"PGID":            "1000",
				"TZ":              "UTC",
				"USER_NAME":       "testuser",
				"PUBLIC_KEY":      generateTestPublicKey(t, privateKeyPEM),
				"PASSWORD_ACCESS": "false",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("2222/tcp"),
				wait.ForLog("sshd is listening on port").WithStartupTimeout(60*time.Second),
			),
		}

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			testContainerErr = fmt.Errorf("failed to start container: %w", err)
			return
		}

		addr, err := container.Host(ctx)
		if err != nil {
			_ = container.Terminate(ctx)
			testContainerErr = fmt.Errorf("failed to get container host: %w", err)
			return
		}
		mappedPort, err := container.MappedPort(ctx, "2222/tcp")
		if err != nil {
			_ = container.Terminate(ctx)
			testContainerErr = fmt.Errorf("failed to get mapped port: %w", err)
			return
		}

		testContainerInst = &testContainer{
			container: container,
			record: &host.Record{
				Name:         "sshd",
				Address:      addr,
				Port:         mappedPort.Int(),
				User:         "testuser",
				IdentityFile: keyPath,
			},
		}
	})

	if testContainerErr != nil {
		t.Fatalf("failed to get test container: %v", testContainerErr)
	}
	return testContainerInst
}

// generateSharedKey writes an RSA key to a directory that outlives
// individual tests, since the container is shared across them.
func generateSharedKey() (string, string) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", ""
	}
	privateKeyPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}))

	dir, err := os.MkdirTemp("", "scout-sshpool-test-*")
	if err != nil {
		return "", ""
	}
	keyPath := filepath.Join(dir, "test_key")
	if err := os.WriteFile(keyPath, []byte(privateKeyPEM), 0600); err != nil {
		return "", ""
	}
	return privateKeyPEM, keyPath
}

func newIntegrationPool(t *testing.T) (*Pool, *host.Record) {
	t.Helper()
	tc := getTestContainer(t)
	connector := NewSSHConnector(SSHOptions{InsecureIgnoreHostKey: true})
	pool := NewPool(connector, Options{IdleTimeout: time.Minute})
	t.Cleanup(func() { pool.Shutdown() })
	return pool, tc.record
}

func TestIntegration_AcquireAndRun(t *testing.T) {
	pool, rec := newIntegrationPool(t)
	ctx := context.Background()

	s, err := pool.AcquireWithRetry(ctx, rec)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	res, err := RunWithTimeout(ctx, s, "echo hello; echo oops >&2; exit 3", 10*time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}

	again, err := pool.Acquire(ctx, rec)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if again != s {
		t.Error("expected pooled session to be reused")
	}
}

func TestIntegration_PutGetRoundTrip(t *testing.T) {
	pool, rec := newIntegrationPool(t)
	ctx := context.Background()

	s, err := pool.Acquire(ctx, rec)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	content := bytes.Repeat([]byte("scout"), 1000)
	local := createTempFile(t, content)
	remote := fmt.Sprintf("/tmp/scout-it-%d/data.bin", time.Now().UnixNano())

	n, err := s.Put(ctx, local, remote)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("put wrote %d bytes, want %d", n, len(content))
	}

	info, err := s.Stat(ctx, remote)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != int64(len(content)) {
		t.Errorf("remote size %d, want %d", info.Size(), len(content))
	}

	localSum, _, err := HashFile(local)
	if err != nil {
		t.Fatalf("hash local: %v", err)
	}
	remoteSum, err := s.Hash(ctx, remote)
	if err != nil {
		t.Fatalf("hash remote: %v", err)
	}
	if localSum != remoteSum {
		t.Errorf("remote digest %s, want %s", remoteSum, localSum)
	}

	downloaded := filepath.Join(t.TempDir(), "back.bin")
	if _, err := s.Get(ctx, remote, downloaded); err != nil {
		t.Fatalf("get: %v", err)
	}
	got, err := os.ReadFile(downloaded)
	if err != nil {
		t.Fatalf("read downloaded: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("round-trip content mismatch")
	}

	head, err := s.ReadFile(ctx, remote, 5)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(head) != "scout" {
		t.Errorf("head = %q", head)
	}
}

func TestIntegration_ReleaseReconnects(t *testing.T) {
	pool, rec := newIntegrationPool(t)
	ctx := context.Background()

	first, err := pool.Acquire(ctx, rec)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	pool.Release(rec.Name)

	waitFor(t, 5*time.Second, first.IsClosed)

	second, err := pool.Acquire(ctx, rec)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if second == first {
		t.Error("expected a new session after release")
	}
}

func TestIntegration_UnreachableHost(t *testing.T) {
	connector := NewSSHConnector(SSHOptions{InsecureIgnoreHostKey: true, Timeout: 2 * time.Second})
	pool := NewPool(connector, Options{ConnectTimeout: 2 * time.Second})
	defer pool.Shutdown()

	_, keyPath := generateTestRSAKey(t)
	rec := &host.Record{Name: "nowhere", Address: "127.0.0.1", Port: 1, User: "nobody", IdentityFile: keyPath}

	_, err := pool.AcquireWithRetry(context.Background(), rec)
	var retryErr *RetryError
	if !errors.As(err, &retryErr) {
		t.Fatalf("expected *RetryError, got %v", err)
	}
}
