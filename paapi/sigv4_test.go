package paapi

import (
	"bytes"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedRequest(t *testing.T, secretKey string, payload []byte) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "https://webservices.amazon.com/paapi5/getitems", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Target", getItemsTarget)

	s := signer{
		accessKey: "AKIDEXAMPLE",
		secretKey: secretKey,
		region:    "us-east-1",
		service:   serviceName,
	}
	s.sign(req, payload, time.Date(2024, 3, 15, 12, 30, 45, 0, time.UTC))
	return req
}

func TestSignerHeaderShape(t *testing.T) {
	req := signedRequest(t, "secret", []byte(`{"ItemIds":["B08N5WRWNW"]}`))

	assert.Equal(t, "20240315T123045Z", req.Header.Get("X-Amz-Date"))

	auth := req.Header.Get("Authorization")
	require.NotEmpty(t, auth)
	assert.Contains(t, auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20240315/us-east-1/ProductAdvertisingAPI/aws4_request")
	assert.Contains(t, auth, "SignedHeaders=content-type;host;x-amz-date;x-amz-target")

	sigPattern := regexp.MustCompile(`Signature=([0-9a-f]{64})$`)
	assert.Regexp(t, sigPattern, auth)
}

func TestSignerIsDeterministic(t *testing.T) {
	payload := []byte(`{"ItemIds":["B08N5WRWNW"]}`)
	first := signedRequest(t, "secret", payload)
	second := signedRequest(t, "secret", payload)
	assert.Equal(t, first.Header.Get("Authorization"), second.Header.Get("Authorization"))
}

func TestSignerSensitivity(t *testing.T) {
	payload := []byte(`{"ItemIds":["B08N5WRWNW"]}`)
	base := signedRequest(t, "secret", payload).Header.Get("Authorization")

	differentKey := signedRequest(t, "other-secret", payload).Header.Get("Authorization")
	assert.NotEqual(t, base, differentKey, "signature must depend on the secret key")

	differentPayload := signedRequest(t, "secret", []byte(`{"ItemIds":["B000123456"]}`)).Header.Get("Authorization")
	assert.NotEqual(t, base, differentPayload, "signature must depend on the payload hash")
}
