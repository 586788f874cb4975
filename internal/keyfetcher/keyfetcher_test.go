package keyfetcher

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPEMs(t *testing.T) (priv *rsa.PrivateKey, privPEM, pubPEM []byte) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)

	privKeyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	require.NoError(t, err)

	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubKeyBytes})
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privKeyBytes})
	return privateKey, privPEM, pubPEM
}

func TestFromBase64Env(t *testing.T) {
	privateKey, privPEM, pubPEM := testKeyPEMs(t)

	t.Setenv("TEST_PUBLIC_KEY", base64.StdEncoding.EncodeToString(pubPEM))
	t.Setenv("TEST_PRIVATE_KEY", base64.StdEncoding.EncodeToString(privPEM))

	pub, err := FromBase64Env("TEST_PUBLIC_KEY").FetchPublicKey()
	assert.NoError(t, err)
	assert.Equal(t, &privateKey.PublicKey, pub)

	priv, err := FromBase64Env("TEST_PRIVATE_KEY").FetchPrivateKey()
	assert.NoError(t, err)
	assert.Equal(t, privateKey, priv)

	_, err = FromBase64Env("MISSING_KEY_ENV").FetchPublicKey()
	assert.EqualError(t, err, "environment variable MISSING_KEY_ENV is not set")
}

func TestFromFile(t *testing.T) {
	privateKey, _, pubPEM := testKeyPEMs(t)

	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pubPEM, 0o600))

	pub, err := FromFile(path).FetchPublicKey()
	assert.NoError(t, err)
	assert.Equal(t, &privateKey.PublicKey, pub)

	_, err = FromFile(filepath.Join(t.TempDir(), "absent.pem")).FetchPublicKey()
	assert.Error(t, err)
}
