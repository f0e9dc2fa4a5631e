package httpsig

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

const keyBits = 2048

// Keypair is a PEM-encoded RSA keypair. Generated once per actor at
// creation time and never regenerated.
type Keypair struct {
	Public  string
	Private string
}

// GenerateKeypair creates a 2048-bit RSA keypair. The private key is
// PKCS#1, the public key PKIX, matching what other federated servers
// publish in actor documents.
func GenerateKeypair() (*Keypair, error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA keypair: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})

	return &Keypair{Public: string(pubPEM), Private: string(privPEM)}, nil
}

// PublicKeyDescriptor is the publicKey object embedded in a served
// actor document. The shape is a protocol contract.
type PublicKeyDescriptor struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// FormatPublicKeyForActor builds the key descriptor for an actor URI.
func FormatPublicKeyForActor(actorURI string, publicKeyPem string) PublicKeyDescriptor {
	return PublicKeyDescriptor{
		ID:           actorURI + "#main-key",
		Owner:        actorURI,
		PublicKeyPem: publicKeyPem,
	}
}

// ParsePrivateKey converts a PEM string to an RSA private key. Both
// PKCS#1 and PKCS#8 encodings occur in the wild.
func ParsePrivateKey(pemString string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemString))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

// ParsePublicKey converts a PEM string to an RSA public key, accepting
// PKIX and PKCS#1 encodings.
func ParsePublicKey(pemString string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemString))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block")
	}

	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA public key")
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}
