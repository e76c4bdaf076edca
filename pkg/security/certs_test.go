package security

import (
	"crypto/x509"
	"net"
	"os"
	"testing"
	"time"

	"github.com/cuemby/fleetd/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCA(t *testing.T) *CertAuthority {
	t.Helper()
	key := DeriveKeyFromClusterID("test-cluster")
	require.NoError(t, SetClusterEncryptionKey(key))

	tmpDir, err := os.MkdirTemp("", "fleetd-ca-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := storage.NewBoltStore(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ca := NewCertAuthority(store)
	require.NoError(t, ca.Initialize())
	return ca
}

func TestCertNeedsRotation(t *testing.T) {
	tests := []struct {
		name     string
		notAfter time.Time
		needsRot bool
	}{
		{"expiring in 1 day", time.Now().Add(24 * time.Hour), true},
		{"expiring in 29 days", time.Now().Add(29 * 24 * time.Hour), true},
		{"expiring in 31 days", time.Now().Add(31 * 24 * time.Hour), false},
		{"expiring in 60 days", time.Now().Add(60 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := &x509.Certificate{NotAfter: tt.notAfter}
			assert.Equal(t, tt.needsRot, CertNeedsRotation(cert))
		})
	}

	assert.True(t, CertNeedsRotation(nil), "nil certificate should need rotation")
}

func TestGetCertExpiry(t *testing.T) {
	expected := time.Now().Add(90 * 24 * time.Hour)
	cert := &x509.Certificate{NotAfter: expected}

	assert.True(t, GetCertExpiry(cert).Equal(expected))
	assert.True(t, GetCertExpiry(nil).IsZero())
}

func TestGetCertTimeRemaining(t *testing.T) {
	expected := 45 * 24 * time.Hour
	cert := &x509.Certificate{NotAfter: time.Now().Add(expected)}

	remaining := GetCertTimeRemaining(cert)
	assert.InDelta(t, expected, remaining, float64(time.Second))

	assert.Zero(t, GetCertTimeRemaining(nil))
}

func TestGetCertInfo(t *testing.T) {
	ca := newTestCA(t)

	cert, err := ca.IssueNodeCertificate("test-node", "worker", []string{}, []net.IP{})
	require.NoError(t, err)

	info := GetCertInfo(cert.Leaf)

	assert.Equal(t, "worker-test-node", info["subject"])
	assert.Equal(t, "Fleet Root CA", info["issuer"])
	assert.Equal(t, false, info["is_ca"])

	nilInfo := GetCertInfo(nil)
	assert.Contains(t, nilInfo, "error")
}
