package bign

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateSafePrime returns (p, q) with p = 2q+1, both probable primes, q
// of bits-1 bits and p of bits bits, satisfying p ≡ 7 (mod 8) so
// that g = 2 generates the quadratic-residue subgroup QR_p.
func GenerateSafePrime(bits int) (p, q *big.Int, err error) {
	if bits < 16 {
		return nil, nil, fmt.Errorf("bign: prime size %d too small", bits)
	}
	for {
		q, err = rand.Prime(rand.Reader, bits-1)
		if err != nil {
			return nil, nil, err
		}
		p = new(big.Int).Lsh(q, 1)
		p.Add(p, big.NewInt(1))
		if !p.ProbablyPrime(30) {
			continue
		}
		if new(big.Int).Mod(p, big.NewInt(8)).Int64() != 7 {
			continue
		}
		return p, q, nil
	}
}

// ProbablyPrime runs Miller-Rabin with a standard confidence level.
func ProbablyPrime(n *big.Int) bool {
	return n.ProbablyPrime(30)
}
