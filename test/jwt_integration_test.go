//go:build integration
// +build integration

package test

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/mwalden07/authgate/token"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	return public, private
}

func newEdManager(t *testing.T, kid string, public ed25519.PublicKey, private ed25519.PrivateKey) *token.Manager {
	t.Helper()
	mgr, err := token.NewManager(token.Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: token.MethodEd25519,
		PrivateKey:    private,
		PublicKey:     public,
		Issuer:        "authgate-test",
		RequireIAT:    true,
		KeyID:         kid,
		VerifyKeys:    map[string][]byte{kid: public},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return mgr
}

func TestEd25519RoundTrip(t *testing.T) {
	public, private := newEdKeys(t)
	mgr := newEdManager(t, "k1", public, private)

	signed, err := mgr.CreateAccess("principal-1", "jti-1", []string{"admin", "user"}, 7)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	claims, err := mgr.ParseAccess(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "principal-1" {
		t.Errorf("subject = %q, want principal-1", claims.Subject)
	}
	if claims.ID != "jti-1" {
		t.Errorf("jti = %q, want jti-1", claims.ID)
	}
	if claims.SecurityVersion != 7 {
		t.Errorf("security version = %d, want 7", claims.SecurityVersion)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "admin" {
		t.Errorf("roles = %v, want [admin user]", claims.Roles)
	}
}

func TestUnknownKidRejected(t *testing.T) {
	public, private := newEdKeys(t)
	verifier := newEdManager(t, "k1", public, private)

	// Same key material, but minted under a kid the verifier does not trust.
	rogue := newEdManager(t, "rogue", public, private)
	signed, err := rogue.CreateAccess("principal-1", "jti-rogue", nil, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := verifier.ParseAccess(signed); err == nil {
		t.Fatal("expected unknown kid token to fail verification")
	} else if !strings.Contains(err.Error(), "unknown kid") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestForeignKeySignatureRejected(t *testing.T) {
	publicA, privateA := newEdKeys(t)
	publicB, _ := newEdKeys(t)

	// Verifier trusts key B under kid k1; the token is signed with key A
	// under the same kid.
	signer := newEdManager(t, "k1", publicA, privateA)
	verifier := newEdManager(t, "k1", publicB, nil)

	signed, err := signer.CreateAccess("principal-1", "jti-forged", nil, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := verifier.ParseAccess(signed); err == nil {
		t.Fatal("expected token signed with untrusted key to fail verification")
	}
}

func TestKeyRotationAcceptsBothGenerations(t *testing.T) {
	publicOld, privateOld := newEdKeys(t)
	publicNew, privateNew := newEdKeys(t)

	oldSigner := newEdManager(t, "2025-01", publicOld, privateOld)
	oldToken, err := oldSigner.CreateAccess("principal-1", "jti-old", nil, 1)
	if err != nil {
		t.Fatalf("create old: %v", err)
	}

	// After rotation the manager signs with the new key but still trusts
	// tokens minted under the previous kid.
	rotated, err := token.NewManager(token.Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: token.MethodEd25519,
		PrivateKey:    privateNew,
		PublicKey:     publicNew,
		Issuer:        "authgate-test",
		RequireIAT:    true,
		KeyID:         "2025-07",
		VerifyKeys: map[string][]byte{
			"2025-01": publicOld,
			"2025-07": publicNew,
		},
	})
	if err != nil {
		t.Fatalf("new rotated manager: %v", err)
	}

	if _, err := rotated.ParseAccess(oldToken); err != nil {
		t.Fatalf("previous-generation token rejected after rotation: %v", err)
	}

	newToken, err := rotated.CreateAccess("principal-1", "jti-new", nil, 1)
	if err != nil {
		t.Fatalf("create new: %v", err)
	}
	if _, err := rotated.ParseAccess(newToken); err != nil {
		t.Fatalf("current-generation token rejected: %v", err)
	}
}

func TestAlgorithmConfusionRejected(t *testing.T) {
	public, private := newEdKeys(t)
	verifier := newEdManager(t, "k1", public, private)

	hsManager, err := token.NewManager(token.Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: token.MethodHS256,
		PrivateKey:    []byte("a-32-byte-symmetric-secret-key!!"),
		Issuer:        "authgate-test",
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": []byte("a-32-byte-symmetric-secret-key!!")},
	})
	if err != nil {
		t.Fatalf("new hs256 manager: %v", err)
	}

	signed, err := hsManager.CreateAccess("principal-1", "jti-confused", nil, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := verifier.ParseAccess(signed); err == nil {
		t.Fatal("expected hs256 token to fail against ed25519 verifier")
	}
}

func TestExtractIDIgnoresExpiry(t *testing.T) {
	public, private := newEdKeys(t)
	mgr, err := token.NewManager(token.Config{
		AccessTTL:     time.Millisecond,
		SigningMethod: token.MethodEd25519,
		PrivateKey:    private,
		PublicKey:     public,
		Issuer:        "authgate-test",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	signed, err := mgr.CreateAccess("principal-1", "jti-expired", nil, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := mgr.ParseAccess(signed); err == nil {
		t.Fatal("expected expired token to fail full validation")
	}

	jti, expiresAt, err := mgr.ExtractID(signed)
	if err != nil {
		t.Fatalf("extract id: %v", err)
	}
	if jti != "jti-expired" {
		t.Errorf("jti = %q, want jti-expired", jti)
	}
	if !expiresAt.Before(time.Now()) {
		t.Errorf("expiry %v should be in the past", expiresAt)
	}
}
