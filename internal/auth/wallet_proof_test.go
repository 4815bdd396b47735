package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func signMessage(t *testing.T, message string) (common.Address, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatal(err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return crypto.PubkeyToAddress(key.PublicKey), hexutil.Encode(sig)
}

func TestVerifyWalletSignature(t *testing.T) {
	msg := "Sign in to localhost\nNonce: abc123"
	addr, sig := signMessage(t, msg)
	other, _ := signMessage(t, msg)

	tests := []struct {
		name    string
		addr    common.Address
		message string
		sig     string
		wantErr bool
	}{
		{"valid", addr, msg, sig, false},
		{"other address", other, msg, sig, true},
		{"tampered message", addr, msg + "!", sig, true},
		{"not hex", addr, msg, "zz", true},
		{"short", addr, msg, "0x1234", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyWalletSignature(tt.addr, tt.message, tt.sig)
			if (err != nil) != tt.wantErr {
				t.Fatalf("VerifyWalletSignature() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("error %v is not ErrInvalidSignature", err)
			}
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000a11ce")

	token, err := GenerateJWT("secret", addr, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("ParseJWT error: %v", err)
	}
	if claims.Caller() != addr {
		t.Errorf("Caller() = %s, want %s", claims.Caller().Hex(), addr.Hex())
	}

	if _, err := ParseJWT("other-secret", token); err == nil {
		t.Error("ParseJWT with wrong secret should fail")
	}
}
