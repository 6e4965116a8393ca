package unicast

import "crypto/rand"

func randRead(b []byte) (int, error) {
	return rand.Read(b)
}

// secureIntn returns a uniform value in [0, n) using crypto/rand, avoiding
// modulo bias for the small n values the Random scheduler needs.
func secureIntn(n int) int {
	if n <= 1 {
		return 0
	}
	var b [8]byte
	_, _ = rand.Read(b[:])
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return int(v % uint64(n))
}
