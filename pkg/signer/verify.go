// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-manta.
//
// go-manta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

var (
	ErrMissingSignature = errors.New("signer: request carries no signature")
	ErrBadSignature     = errors.New("signer: signature verification failed")
	ErrExpired          = errors.New("signer: signed url has expired")
)

// Verifier checks signatures produced by a KeySigner against the public
// key registered for the account.
type Verifier struct {
	keyID string
	pub   crypto.PublicKey
}

// NewVerifier returns a verifier for the given account and public key.
func NewVerifier(account, subuser string, pub ssh.PublicKey) (*Verifier, error) {
	cpk, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, ErrUnsupportedKey
	}
	owner := "/" + account
	if subuser != "" {
		owner += "/" + subuser
	}
	return &Verifier{
		keyID: owner + "/keys/" + ssh.FingerprintLegacyMD5(pub),
		pub:   cpk.CryptoPublicKey(),
	}, nil
}

// VerifyRequest checks the Authorization header of req.
func (v *Verifier) VerifyRequest(req *http.Request) error {
	auth := req.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Signature ") {
		return ErrMissingSignature
	}
	params := parseParams(strings.TrimPrefix(auth, "Signature "))
	if params["keyId"] != v.keyID {
		return fmt.Errorf("%w: unknown key %q", ErrBadSignature, params["keyId"])
	}
	return v.verify(params["algorithm"], []byte("date: "+req.Header.Get("Date")), params["signature"])
}

// VerifyURL checks a capability URL produced by SignURL.
func (v *Verifier) VerifyURL(method string, u *url.URL, now time.Time) error {
	q := u.Query()
	sig := q.Get("signature")
	if sig == "" {
		return ErrMissingSignature
	}
	if q.Get("keyId") != v.keyID {
		return fmt.Errorf("%w: unknown key %q", ErrBadSignature, q.Get("keyId"))
	}
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expiry", ErrBadSignature)
	}
	if now.Unix() > expires {
		return ErrExpired
	}
	q.Del("signature")

	data := strings.ToUpper(method) + "\n" + u.Host + "\n" + u.EscapedPath() + "\n" + q.Encode()
	return v.verify(strings.ToLower(q.Get("algorithm")), []byte(data), sig)
}

func (v *Verifier) verify(algorithm string, data []byte, sigB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	var hash crypto.Hash
	switch {
	case strings.HasSuffix(algorithm, "sha256"):
		hash = crypto.SHA256
	case strings.HasSuffix(algorithm, "sha384"):
		hash = crypto.SHA384
	case strings.HasSuffix(algorithm, "sha512"):
		hash = crypto.SHA512
	default:
		return fmt.Errorf("%w: algorithm %q", ErrBadSignature, algorithm)
	}
	h := hash.New()
	h.Write(data)
	digest := h.Sum(nil)

	switch pub := v.pub.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, hash, digest, sig); err != nil {
			return ErrBadSignature
		}
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, digest, sig) {
			return ErrBadSignature
		}
	default:
		return ErrUnsupportedKey
	}
	return nil
}

// parseParams splits k="v",k2="v2" into a map.
func parseParams(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		out[k] = strings.Trim(v, `"`)
	}
	return out
}
