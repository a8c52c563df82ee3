package port

// CodeHasher hashes and verifies one-way secrets (backup codes, password
// history entries) using the configured algorithm.
type CodeHasher interface {
	Hash(code string) (string, error)
	Verify(code string, encoded string) (bool, error)
}
