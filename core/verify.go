package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecoverAddress recovers the signer of an EIP-191 personal-sign signature
// over the exact message text
func RecoverAddress(message, signature string) (common.Address, error) {
	decodedSig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", ErrInvalidSignature)
	}
	if len(decodedSig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes: %w", ErrInvalidSignature)
	}

	// Wallets return V as 27/28; secp256k1 recovery wants 0/1
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, decodedSig)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("bad recovery id: %w", ErrInvalidSignature)
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", ErrInvalidSignature)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifyChallenge runs the full check sequence over a submitted challenge:
// parse, signature recovery against the claimed account, expiration, and
// nonce equality against the single currently stored nonce. It is pure;
// session creation is the caller's concern.
func VerifyChallenge(message, signature, account, storedNonce string, now time.Time) (common.Address, error) {
	msg, err := ParseMessage(message)
	if err != nil {
		return common.Address{}, err
	}

	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return common.Address{}, err
	}
	if !strings.EqualFold(recovered.Hex(), account) {
		return common.Address{}, fmt.Errorf("recovered address does not match account: %w", ErrInvalidSignature)
	}
	if !strings.EqualFold(recovered.Hex(), msg.Address) {
		return common.Address{}, fmt.Errorf("recovered address does not match message address: %w", ErrInvalidSignature)
	}

	if msg.IsExpired(now) {
		return common.Address{}, ErrExpiredChallenge
	}

	if storedNonce == "" || msg.Nonce != storedNonce {
		return common.Address{}, ErrNonceMismatch
	}

	return recovered, nil
}
