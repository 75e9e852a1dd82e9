// internal/api/auth.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go"
)

// adminRequest - подписанная команда администратора. Поле identity принимается
// как синоним pubkey.
type adminRequest struct {
	Pubkey    string `json:"pubkey"`
	Identity  string `json:"identity"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

func (r adminRequest) identity() string {
	if r.Pubkey != "" {
		return r.Pubkey
	}
	return r.Identity
}

// AuthError - отказ в доступе с HTTP-статусом
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// verifyAdmin проверяет, что сообщение подписано единственным разрешённым ключом
// (ed25519, подпись в base58 над UTF-8 байтами сообщения)
func verifyAdmin(req adminRequest, allowed solana.PublicKey) error {
	id := req.identity()
	if id == "" || req.Message == "" || req.Signature == "" {
		return &AuthError{Status: http.StatusBadRequest, Message: "Missing fields"}
	}

	pubkey, err := solana.PublicKeyFromBase58(id)
	if err != nil {
		return &AuthError{Status: http.StatusBadRequest, Message: "Malformed pubkey"}
	}
	if !pubkey.Equals(allowed) {
		return &AuthError{Status: http.StatusForbidden, Message: "Not allowed"}
	}

	sig, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		return &AuthError{Status: http.StatusBadRequest, Message: "Bad signature"}
	}
	if !sig.Verify(pubkey, []byte(req.Message)) {
		return &AuthError{Status: http.StatusBadRequest, Message: "Bad signature"}
	}
	return nil
}
