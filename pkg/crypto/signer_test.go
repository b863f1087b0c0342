package crypto

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}

	if privHex := signer.PrivateKeyHex(); len(privHex) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(privHex))
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	signer1, _ := GenerateKey()
	privHex := signer1.PrivateKeyHex()

	for _, in := range []string{privHex, "0x" + privHex} {
		signer2, err := FromPrivateKeyHex(in)
		if err != nil {
			t.Fatalf("failed to load key %q: %v", in, err)
		}
		if signer2.Address() != signer1.Address() {
			t.Errorf("address = %s, want %s", signer2.Address().Hex(), signer1.Address().Hex())
		}
	}

	if _, err := FromPrivateKeyHex("zz"); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestSignAndVerify(t *testing.T) {
	signer, _ := GenerateKey()
	hash := eth_crypto.Keccak256([]byte("Hello, TriggerSwap!"))

	signature, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if len(signature) != SignatureLength {
		t.Errorf("signature length = %d, want %d", len(signature), SignatureLength)
	}

	if !VerifySignature(signer.Address(), hash, signature) {
		t.Error("signature verification failed")
	}

	wrongAddr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	if VerifySignature(wrongAddr, hash, signature) {
		t.Error("signature should not verify with wrong address")
	}
}

func TestRecoverAddress_WalletRecoveryID(t *testing.T) {
	signer, _ := GenerateKey()
	hash := eth_crypto.Keccak256([]byte("wallet style"))

	signature, _ := signer.Sign(hash)
	walletSig := append([]byte{}, signature...)
	walletSig[64] += 27

	recovered, err := RecoverAddress(hash, walletSig)
	if err != nil {
		t.Fatalf("failed to recover address: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered address = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
	if walletSig[64] < 27 {
		t.Error("RecoverAddress mutated the caller's signature")
	}

	badSig := append([]byte{}, signature...)
	badSig[64] = 5
	if _, err := RecoverAddress(hash, badSig); err == nil {
		t.Error("expected error for recovery id 5")
	}
}

func TestSignatureToRSV(t *testing.T) {
	signer, _ := GenerateKey()
	signature, _ := signer.Sign(eth_crypto.Keccak256([]byte("RSV test")))

	r, s, v, err := SignatureToRSV(signature)
	if err != nil {
		t.Fatalf("failed to split signature: %v", err)
	}

	if reconstructed := RSVToSignature(r, s, v); !bytes.Equal(reconstructed, signature) {
		t.Errorf("reconstructed = %x, want %x", reconstructed, signature)
	}
}

func TestGenerateNonce(t *testing.T) {
	nonce1, err := GenerateNonce()
	if err != nil {
		t.Fatalf("failed to generate nonce: %v", err)
	}
	nonce2, err := GenerateNonce()
	if err != nil {
		t.Fatalf("failed to generate second nonce: %v", err)
	}

	if nonce1.Cmp(nonce2) == 0 {
		t.Error("generated identical nonces (unlikely but possible - retry test)")
	}
	if nonce1.BitLen() > 64 {
		t.Errorf("nonce exceeds 64 bits: %s", nonce1)
	}
}

func TestInvalidSignature(t *testing.T) {
	signer, _ := GenerateKey()
	hash := common.BytesToHash([]byte("test")).Bytes()

	if VerifySignature(signer.Address(), hash, []byte{1, 2, 3}) {
		t.Error("invalid signature should not verify")
	}

	if VerifySignature(signer.Address(), []byte("short"), make([]byte, 65)) {
		t.Error("invalid hash should not verify")
	}
}
