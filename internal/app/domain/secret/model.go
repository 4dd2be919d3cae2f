// Package secret defines the encrypted secret record persisted per wallet.
package secret

import "time"

// EncryptedSecret holds the sealed mnemonic and private key for one wallet.
// Exactly one row exists per wallet and it is write-once; plaintext never
// appears here. Envelope fields carry the stable
// hex(nonce):hex(tag):hex(ciphertext) encoding.
type EncryptedSecret struct {
	WalletID           string
	MnemonicEnvelope   string
	PrivateKeyEnvelope string
	CreatedAt          time.Time
}
