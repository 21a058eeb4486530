package federation

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	pubPEM, privPEM, err := GenerateKeyPair()
	require.NoError(t, err)

	privKey, err := ParsePrivateKey(privPEM)
	require.NoError(t, err)
	pubKey, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)

	body := []byte(`{"type":"UpdateArticle"}`)
	req := httptest.NewRequest(http.MethodPost, "https://b.test/inbox", bytes.NewReader(body))
	req.Header.Set("Host", "b.test")
	req.Header.Set("Date", "Thu, 01 Jan 2026 00:00:00 GMT")

	require.NoError(t, SignRequest(req, body, "https://a.test/instance#main-key", privKey))
	require.NotEmpty(t, req.Header.Get("Signature"))

	require.NoError(t, VerifyRequest(req, pubKey))
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	pubPEM, privPEM, err := GenerateKeyPair()
	require.NoError(t, err)
	privKey, err := ParsePrivateKey(privPEM)
	require.NoError(t, err)
	pubKey, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)

	body := []byte(`{"type":"UpdateArticle"}`)
	req := httptest.NewRequest(http.MethodPost, "https://b.test/inbox", bytes.NewReader(body))
	req.Header.Set("Host", "b.test")
	req.Header.Set("Date", "Thu, 01 Jan 2026 00:00:00 GMT")
	require.NoError(t, SignRequest(req, body, "https://a.test/instance#main-key", privKey))

	req.Header.Set("Date", "Fri, 02 Jan 2026 00:00:00 GMT")
	require.Error(t, VerifyRequest(req, pubKey))
}

func TestVerifierKeyIDMatchesSigner(t *testing.T) {
	_, privPEM, err := GenerateKeyPair()
	require.NoError(t, err)
	privKey, err := ParsePrivateKey(privPEM)
	require.NoError(t, err)

	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "https://b.test/inbox", bytes.NewReader(body))
	req.Header.Set("Host", "b.test")
	req.Header.Set("Date", "Thu, 01 Jan 2026 00:00:00 GMT")
	require.NoError(t, SignRequest(req, body, "https://a.test/instance#main-key", privKey))

	keyID, err := VerifierKeyID(req)
	require.NoError(t, err)
	require.Equal(t, "https://a.test/instance#main-key", keyID)
}
