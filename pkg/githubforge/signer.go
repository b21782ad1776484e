/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubforge

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/golang-jwt/jwt/v4"
)

// NewSigner returns a signer for the app's JWTs based on a key URL.
// Supported URL schemes:
//   - file://<path>: a PEM encoded RSA private key read from a file.
//   - env://<name>: a PEM encoded RSA private key held in an environment variable.
//   - gcpkms://<key version>: a remote signer for a GCP KMS asymmetric key.
func NewSigner(ctx context.Context, keyURL string) (ghinstallation.Signer, error) {
	scheme, ref, ok := strings.Cut(keyURL, "://")
	if !ok {
		return nil, fmt.Errorf("invalid key format: %s", keyURL)
	}

	switch scheme {
	case "file":
		pem, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("could not open file: %w", err)
		}
		return rsaSigner(pem)

	case "env":
		pem := os.Getenv(ref)
		if pem == "" {
			return nil, fmt.Errorf("environment variable %s is empty", ref)
		}
		return rsaSigner([]byte(pem))

	case "gcpkms":
		client, err := kms.NewKeyManagementClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not create kms client: %w", err)
		}
		return &kmsSigner{
			ctx: ctx,
			key: ref,
			sign: func(ctx context.Context, req *kmspb.AsymmetricSignRequest) (*kmspb.AsymmetricSignResponse, error) {
				return client.AsymmetricSign(ctx, req)
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown key type: %s", scheme)
}

func rsaSigner(pem []byte) (ghinstallation.Signer, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}
	return ghinstallation.NewRSASigner(jwt.SigningMethodRS256, key), nil
}

type signFunc func(context.Context, *kmspb.AsymmetricSignRequest) (*kmspb.AsymmetricSignResponse, error)

// kmsSigner signs with an RSA_SIGN_PKCS1_*_SHA256 key version held in KMS.
type kmsSigner struct {
	ctx  context.Context
	key  string
	sign signFunc
}

// Sign implements ghinstallation.Signer.
func (s *kmsSigner) Sign(claims jwt.Claims) (string, error) {
	method := &kmsMethod{ctx: s.ctx, sign: s.sign}
	return jwt.NewWithClaims(method, claims).SignedString(s.key)
}

// kmsMethod is a jwt.SigningMethod whose key is a KMS key version name.
type kmsMethod struct {
	ctx  context.Context
	sign signFunc
}

func (m *kmsMethod) Alg() string { return jwt.SigningMethodRS256.Alg() }

func (m *kmsMethod) Verify(string, string, interface{}) error {
	return errors.New("not implemented")
}

func (m *kmsMethod) Sign(signingString string, key interface{}) (string, error) {
	name, ok := key.(string)
	if !ok {
		return "", fmt.Errorf("invalid key reference type: %T", key)
	}
	digest := sha256.Sum256([]byte(signingString))
	resp, err := m.sign(m.ctx, &kmspb.AsymmetricSignRequest{
		Name: name,
		Digest: &kmspb.Digest{
			Digest: &kmspb.Digest_Sha256{Sha256: digest[:]},
		},
	})
	if err != nil {
		return "", fmt.Errorf("signing with %s: %w", name, err)
	}
	return base64.RawURLEncoding.EncodeToString(resp.GetSignature()), nil
}
