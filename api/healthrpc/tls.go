package healthrpc

import (
	"crypto/tls"
	"crypto/x509"

	"google.golang.org/grpc/credentials"

	"github.com/cuemby/fleetd/pkg/security"
)

// ServerCredentials builds mTLS transport credentials for the healthrpc
// listener from ca-issued server and peer material, grounded on the
// teacher's pkg/api/server.go mTLS-optional listener setup.
func ServerCredentials(ca *security.CertAuthority, nodeID string) (credentials.TransportCredentials, error) {
	cert, err := ca.IssueNodeCertificate(nodeID, "engine", nil, nil)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(rootCert(ca))
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}), nil
}

// ClientCredentials builds mTLS transport credentials for dialing a peer
// engine's healthrpc listener.
func ClientCredentials(ca *security.CertAuthority, clientID string) (credentials.TransportCredentials, error) {
	cert, err := ca.IssueClientCertificate(clientID)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(rootCert(ca))
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      pool,
	}), nil
}

func rootCert(ca *security.CertAuthority) *x509.Certificate {
	cert, _ := x509.ParseCertificate(ca.GetRootCACert())
	return cert
}
