package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":820982911946154508}`)
	good := Sign("shpss_test", body)

	assert.True(t, VerifySignature("shpss_test", body, good))
	assert.False(t, VerifySignature("shpss_test", body, Sign("other", body)))
	assert.False(t, VerifySignature("shpss_test", []byte(`{"id":1}`), good))
	assert.False(t, VerifySignature("shpss_test", body, ""))
	assert.True(t, VerifySignature("", body, ""), "no secret skips verification")
}

func TestSign_KnownVector(t *testing.T) {
	// echo -n 'hello' | openssl dgst -sha256 -hmac key -binary | base64
	assert.Equal(t, "kwezuRXvtRcf8U2MtV+8x5jGwO8UVtZt7RpqpyOli3s=", Sign("key", []byte("hello")))
}
