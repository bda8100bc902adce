package rsaledger

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/rsaledger/big"
	"github.com/privacybydesign/rsaledger/rsakeys"
)

// Transaction is a message signed by a key pair, together with a snapshot of the signer's
// public key taken when the transaction was created. Transactions are immutable.
type Transaction struct {
	publicKey *rsakeys.PublicKey
	message   *big.Int
	signature *big.Int
}

// NewTransaction signs message with key. The message must be in [0, n) for the key's
// modulus n, otherwise rsakeys.ErrMessageRange is returned.
func NewTransaction(message *big.Int, key *rsakeys.PrivateKey) (*Transaction, error) {
	signature, err := key.Sign(message)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		publicKey: key.Public(),
		message:   new(big.Int).Set(message),
		signature: signature,
	}, nil
}

// restoreTransaction rebuilds a transaction from decoded values without checking the
// signature, so that invalid persisted transactions can be loaded and then rejected by
// verification.
func restoreTransaction(pk *rsakeys.PublicKey, message, signature *big.Int) *Transaction {
	return &Transaction{
		publicKey: pk.Copy(),
		message:   big.Copy(message),
		signature: big.Copy(signature),
	}
}

// Verify reports whether the signature matches the message under the stored public key.
// Out-of-range values count as an invalid signature.
func (tx *Transaction) Verify() bool {
	ok, err := tx.publicKey.Verify(tx.message, tx.signature)
	if err != nil {
		Logger.WithFields(logrus.Fields{"error": err}).Debug("transaction with out of range values")
		return false
	}
	return ok
}

// PublicKey returns a copy of the signer's public key.
func (tx *Transaction) PublicKey() *rsakeys.PublicKey {
	return tx.publicKey.Copy()
}

// Message returns a copy of the signed message.
func (tx *Transaction) Message() *big.Int {
	return new(big.Int).Set(tx.message)
}

// Signature returns a copy of the signature.
func (tx *Transaction) Signature() *big.Int {
	return new(big.Int).Set(tx.signature)
}

// hashValues returns the transaction fields in the order they enter a block hash.
func (tx *Transaction) hashValues() []*big.Int {
	return []*big.Int{tx.publicKey.E, tx.publicKey.N, tx.message, tx.signature}
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("publicExponent: %s, modulus: %s, message: %s, signature: %s",
		tx.publicKey.E, tx.publicKey.N, tx.message, tx.signature)
}
