package crypto

// Zero overwrites key material in place. Call it before releasing a
// buffer that held a key, nonce, or derived seed.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
