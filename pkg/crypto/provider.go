package crypto

// Provider adapts the package-level primitives to the cipher capability the
// vault session consumes. Having a value type here keeps the concrete
// primitive set swappable in tests without any package-level mutable state.
type Provider struct{}

// Setup implements the cipher capability.
func (Provider) Setup(passphrase string) (*MasterCredential, []byte, error) {
	return Setup(passphrase)
}

// Verify implements the cipher capability.
func (Provider) Verify(passphrase string, storedHash, storedSalt []byte) bool {
	return Verify(passphrase, storedHash, storedSalt)
}

// DeriveKey implements the cipher capability.
func (Provider) DeriveKey(passphrase string, salt []byte) []byte {
	return DeriveKey(passphrase, salt)
}

// Encrypt implements the cipher capability.
func (Provider) Encrypt(key, plaintext []byte) (ciphertext, iv []byte, err error) {
	return Encrypt(key, plaintext)
}

// Decrypt implements the cipher capability.
func (Provider) Decrypt(key, ciphertext, iv []byte) ([]byte, error) {
	return Decrypt(key, ciphertext, iv)
}
