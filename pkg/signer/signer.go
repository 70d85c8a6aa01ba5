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

// Package signer authenticates requests using the HTTP Signature scheme
// with an SSH private key registered to the account.
package signer

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Signer attaches credentials to outgoing requests and produces
// self-authenticating URLs.
type Signer interface {
	// SignRequest sets the Date and Authorization headers on req.
	SignRequest(req *http.Request) error

	// SignURL returns a copy of u that is valid for method until expires
	// without any further credential.
	SignURL(method string, u *url.URL, expires time.Time) (*url.URL, error)
}

// Config holds the identity used to sign requests.
type Config struct {
	Account string
	Subuser string
	// KeyID is the expected fingerprint of the key. When set it must match
	// the key loaded from KeyPath or KeyContent.
	KeyID      string
	KeyPath    string
	KeyContent string
	Passphrase string
}

// Option configures a KeySigner.
type Option func(*KeySigner)

// WithClock overrides the clock used for the Date header.
func WithClock(now func() time.Time) Option {
	return func(s *KeySigner) {
		s.now = now
	}
}

// KeySigner signs requests with an RSA or ECDSA private key.
type KeySigner struct {
	keyID       string
	fingerprint string
	algorithm   string
	hash        crypto.Hash
	key         crypto.Signer
	now         func() time.Time
}

// New loads the private key described by cfg.
func New(cfg Config, opts ...Option) (*KeySigner, error) {
	pemBytes, err := readKey(cfg)
	if err != nil {
		return nil, err
	}

	var raw interface{}
	if cfg.Passphrase != "" {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(pemBytes, []byte(cfg.Passphrase))
	} else {
		raw, err = ssh.ParseRawPrivateKey(pemBytes)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, ErrPassphraseRequired
		}
		return nil, fmt.Errorf("signer: parse private key: %w", err)
	}

	key, ok := raw.(crypto.Signer)
	if !ok {
		return nil, ErrUnsupportedKey
	}
	s, err := NewFromKey(cfg.Account, cfg.Subuser, key, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.KeyID != "" && !s.matches(cfg.KeyID) {
		return nil, fmt.Errorf("%w: %s", ErrKeyMismatch, cfg.KeyID)
	}
	return s, nil
}

// NewFromKey builds a signer around an already loaded key.
func NewFromKey(account, subuser string, key crypto.Signer, opts ...Option) (*KeySigner, error) {
	if account == "" {
		return nil, ErrMissingAccount
	}
	if key == nil {
		return nil, ErrMissingKey
	}

	algorithm, hash, err := algorithmFor(key)
	if err != nil {
		return nil, err
	}
	pub, err := ssh.NewPublicKey(key.Public())
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	fp := ssh.FingerprintLegacyMD5(pub)

	owner := "/" + account
	if subuser != "" {
		owner += "/" + subuser
	}
	s := &KeySigner{
		keyID:       owner + "/keys/" + fp,
		fingerprint: fp,
		algorithm:   algorithm,
		hash:        hash,
		key:         key,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func readKey(cfg Config) ([]byte, error) {
	if cfg.KeyContent != "" {
		return []byte(cfg.KeyContent), nil
	}
	if cfg.KeyPath == "" {
		return nil, ErrMissingKey
	}
	data, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("signer: read private key: %w", err)
	}
	return data, nil
}

func algorithmFor(key crypto.Signer) (string, crypto.Hash, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return "rsa-sha256", crypto.SHA256, nil
	case *ecdsa.PrivateKey:
		switch k.Curve {
		case elliptic.P256():
			return "ecdsa-sha256", crypto.SHA256, nil
		case elliptic.P384():
			return "ecdsa-sha384", crypto.SHA384, nil
		case elliptic.P521():
			return "ecdsa-sha512", crypto.SHA512, nil
		}
	}
	return "", 0, ErrUnsupportedKey
}

// matches accepts either the MD5 or the SHA256 form of the fingerprint.
func (s *KeySigner) matches(keyID string) bool {
	keyID = strings.TrimPrefix(keyID, "MD5:")
	if keyID == s.fingerprint {
		return true
	}
	pub, err := ssh.NewPublicKey(s.key.Public())
	if err != nil {
		return false
	}
	return keyID == ssh.FingerprintSHA256(pub)
}

// KeyID returns the key identifier sent with every signature.
func (s *KeySigner) KeyID() string { return s.keyID }

// Fingerprint returns the MD5 fingerprint of the public key.
func (s *KeySigner) Fingerprint() string { return s.fingerprint }

// Algorithm returns the signature algorithm name.
func (s *KeySigner) Algorithm() string { return s.algorithm }

// SignRequest implements Signer.
func (s *KeySigner) SignRequest(req *http.Request) error {
	date := s.now().UTC().Format(http.TimeFormat)
	sig, err := s.sign([]byte("date: " + date))
	if err != nil {
		return err
	}
	req.Header.Set("Date", date)
	req.Header.Set("Authorization", fmt.Sprintf(
		`Signature keyId="%s",algorithm="%s",headers="date",signature="%s"`,
		s.keyID, s.algorithm, sig))
	return nil
}

// SignURL implements Signer. The signature covers the method, host, path
// and the query string sorted by key. RSA signatures are deterministic so
// a fixed key, URL and expiry always produce the same result.
func (s *KeySigner) SignURL(method string, u *url.URL, expires time.Time) (*url.URL, error) {
	if u == nil || u.Path == "" {
		return nil, fmt.Errorf("signer: path is required")
	}
	if expires.IsZero() {
		return nil, fmt.Errorf("signer: expiry is required")
	}

	q := u.Query()
	q.Set("algorithm", strings.ToUpper(s.algorithm))
	q.Set("expires", strconv.FormatInt(expires.Unix(), 10))
	q.Set("keyId", s.keyID)
	q.Del("signature")
	query := q.Encode()

	var buf bytes.Buffer
	buf.WriteString(strings.ToUpper(method))
	buf.WriteByte('\n')
	buf.WriteString(u.Host)
	buf.WriteByte('\n')
	buf.WriteString(u.EscapedPath())
	buf.WriteByte('\n')
	buf.WriteString(query)

	sig, err := s.sign(buf.Bytes())
	if err != nil {
		return nil, err
	}

	signed := *u
	signed.RawQuery = query + "&signature=" + url.QueryEscape(sig)
	return &signed, nil
}

func (s *KeySigner) sign(data []byte) (string, error) {
	h := s.hash.New()
	h.Write(data)
	sig, err := s.key.Sign(rand.Reader, h.Sum(nil), s.hash)
	if err != nil {
		return "", fmt.Errorf("signer: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Anonymous leaves requests unsigned. It is only useful for public areas.
type Anonymous struct{}

// SignRequest implements Signer.
func (Anonymous) SignRequest(req *http.Request) error {
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	return nil
}

// SignURL implements Signer.
func (Anonymous) SignURL(string, *url.URL, time.Time) (*url.URL, error) {
	return nil, ErrAnonymous
}
