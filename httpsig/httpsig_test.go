package httpsig

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mklatt/dorfplatz/domain"
)

func testActor(t *testing.T) (*domain.Actor, *Keypair) {
	t.Helper()
	keys, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}
	actor := &domain.Actor{
		URI:           "https://example.com/users/alice",
		Username:      "alice",
		Domain:        "example.com",
		PublicKeyPem:  keys.Public,
		PrivateKeyPem: keys.Private,
	}
	return actor, keys
}

func signedRequest(t *testing.T, actor *domain.Actor, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest("POST", "https://remote.example/inbox", bytes.NewReader(body))
	if err := SignRequest(req, actor, body); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}
	return req
}

func TestGenerateKeypairParses(t *testing.T) {
	keys, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}

	priv, err := ParsePrivateKey(keys.Private)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
	pub, err := ParsePublicKey(keys.Public)
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}
	if priv.N.Cmp(pub.N) != 0 {
		t.Error("Public key does not match private key")
	}
	if priv.N.BitLen() != 2048 {
		t.Errorf("Expected 2048-bit key, got %d", priv.N.BitLen())
	}
}

func TestParsePrivateKeyInvalidPEM(t *testing.T) {
	if _, err := ParsePrivateKey("not a valid PEM"); err == nil {
		t.Error("Expected error for invalid PEM")
	}
}

func TestParsePublicKeyInvalidPEM(t *testing.T) {
	if _, err := ParsePublicKey(""); err == nil {
		t.Error("Expected error for empty string")
	}
}

func TestFormatPublicKeyForActor(t *testing.T) {
	desc := FormatPublicKeyForActor("https://example.com/users/alice", "PEM")
	if desc.ID != "https://example.com/users/alice#main-key" {
		t.Errorf("Unexpected key id: %s", desc.ID)
	}
	if desc.Owner != "https://example.com/users/alice" {
		t.Errorf("Unexpected owner: %s", desc.Owner)
	}
	if desc.PublicKeyPem != "PEM" {
		t.Errorf("Unexpected pem: %s", desc.PublicKeyPem)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	actor, keys := testActor(t)

	req := signedRequest(t, actor, []byte(`{"type":"Follow"}`))

	params := ParseSignatureHeader(req.Header.Get("Signature"))
	if params["keyId"] != actor.URI+"#main-key" {
		t.Errorf("Unexpected keyId: %s", params["keyId"])
	}
	if !strings.HasPrefix(req.Header.Get("Digest"), "SHA-256=") {
		t.Errorf("Unexpected digest format: %s", req.Header.Get("Digest"))
	}
	if req.Header.Get("Date") == "" {
		t.Error("Signing should fill in the date header")
	}

	if !VerifyRequest(req, keys.Public) {
		t.Error("Signature produced by SignRequest should verify")
	}
}

func TestVerifyRequestRejectsTamperedHeader(t *testing.T) {
	actor, keys := testActor(t)

	req := signedRequest(t, actor, []byte("{}"))
	req.Header.Set("Date", "Thu, 01 Jan 1970 00:00:00 GMT")

	if VerifyRequest(req, keys.Public) {
		t.Error("Verification should fail after altering a signed header")
	}
}

func TestVerifyRequestRejectsWrongTarget(t *testing.T) {
	actor, keys := testActor(t)

	req := signedRequest(t, actor, []byte("{}"))
	req.URL.Path = "/users/bob/inbox"

	if VerifyRequest(req, keys.Public) {
		t.Error("Verification should fail for a different request target")
	}
}

func TestVerifyRequestRejectsWrongKey(t *testing.T) {
	actor, _ := testActor(t)
	other, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}

	req := signedRequest(t, actor, []byte("{}"))

	if VerifyRequest(req, other.Public) {
		t.Error("Verification should fail with a different public key")
	}
}

func TestVerifyRequestAcceptsHs2019(t *testing.T) {
	actor, keys := testActor(t)

	req := signedRequest(t, actor, []byte("{}"))

	// Same signature bytes, legacy algorithm token. The declared
	// algorithm is untrusted; verification still recomputes RSA-SHA256.
	params := ParseSignatureHeader(req.Header.Get("Signature"))
	req.Header.Set("Signature", fmt.Sprintf(
		`keyId=%q,algorithm="hs2019",headers=%q,signature=%q`,
		params["keyId"], params["headers"], params["signature"]))

	if !VerifyRequest(req, keys.Public) {
		t.Error("hs2019 signatures should verify like rsa-sha256")
	}
}

func TestVerifyRequestMissingSignature(t *testing.T) {
	_, keys := testActor(t)
	req := httptest.NewRequest("POST", "https://remote.example/inbox", bytes.NewReader([]byte("{}")))
	if VerifyRequest(req, keys.Public) {
		t.Error("Verification without a signature header should fail")
	}
}

func TestSignRequestWithoutPrivateKey(t *testing.T) {
	keys, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}
	remote := &domain.Actor{
		URI:          "https://remote.example/users/bob",
		PublicKeyPem: keys.Public,
	}

	req := httptest.NewRequest("POST", "https://example.com/inbox", bytes.NewReader([]byte("{}")))
	if err := SignRequest(req, remote, []byte("{}")); err == nil {
		t.Error("Actors without a private key must not produce signatures")
	}
}

func TestParseSignatureHeader(t *testing.T) {
	raw := `keyId="https://example.com/users/alice#main-key",algorithm="rsa-sha256",headers="(request-target) host date digest content-type",signature="YWJj"`

	params := ParseSignatureHeader(raw)
	if params["keyId"] != "https://example.com/users/alice#main-key" {
		t.Errorf("Unexpected keyId: %s", params["keyId"])
	}
	if params["algorithm"] != "rsa-sha256" {
		t.Errorf("Unexpected algorithm: %s", params["algorithm"])
	}
	if params["headers"] != "(request-target) host date digest content-type" {
		t.Errorf("Unexpected headers list: %s", params["headers"])
	}
	if params["signature"] != "YWJj" {
		t.Errorf("Unexpected signature: %s", params["signature"])
	}
}

func TestParseSignatureHeaderMalformed(t *testing.T) {
	for _, raw := range []string{
		"garbage",
		`keyId=unquoted`,
		`=empty-key`,
		`keyId="ok",broken`,
	} {
		if params := ParseSignatureHeader(raw); len(params) != 0 {
			t.Errorf("Expected empty map for %q, got %v", raw, params)
		}
	}
}
