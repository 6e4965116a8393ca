// Package dkg implements the Gennaro-Jarecki-Krawczyk-Rabin
// Feldman-exposure DKG and a Jarecki-Lysyanskaya threshold DSS sketch,
// layered on vss.Run's Joint-RVSS/Joint-ZVSS.
package dkg

import (
	"math/big"

	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/party"
	"github.com/libtmcg/tmcg/pkg/wire"
)

// Config is the persisted DKG output: p, q, g, h, n, t, i, x_i, x'_i, y,
// |QUAL|, QUAL_0.., y_0.., v_0.., C_ik. It is serialized with pkg/wire's
// CBOR layer rather than the line-delimited ASCII layer, since it is a
// structured container rather than a single protocol message.
type Config struct {
	P, Q, G, H *big.Int
	N, T, I    int

	Xi, Xpi *group.Scalar // this party's share and blinding share
	Y       *big.Int      // the joint public key

	QUAL party.IDSlice

	// YShares[j] = A_j0 = g^{a_j0}, the per-dealer public contribution.
	YShares map[party.ID]*big.Int
	// VerificationKeys[j] = v_j, the per-party Feldman verification key.
	VerificationKeys map[party.ID]*big.Int
	// Commitments[j] = C_jk, the Pedersen commitments from the RVSS run.
	Commitments map[party.ID][]*big.Int
}

// wireConfig is Config's CBOR-friendly shape: math/big.Int and
// group.Scalar don't implement cbor.Marshaler themselves, so every bignum
// routes through wire.Bignum, a dedicated wire-friendly mirror struct.
type wireConfig struct {
	P, Q, G, H wire.Bignum
	N, T, I    int
	Xi, Xpi    wire.Bignum
	Y          wire.Bignum
	QUAL       []string
	YShares    map[string]wire.Bignum
	VKeys      map[string]wire.Bignum
	Commit     map[string][]wire.Bignum
}

// Marshal serializes the config, per PublishVerificationKeys semantics:
// it emits the same layout but zeros the secret fields when public is
// true.
func (c *Config) Marshal(public bool) ([]byte, error) {
	w := wireConfig{
		P: wire.NewBignum(c.P), Q: wire.NewBignum(c.Q), G: wire.NewBignum(c.G), H: wire.NewBignum(c.H),
		N: c.N, T: c.T, I: c.I,
		Y:       wire.NewBignum(c.Y),
		QUAL:    make([]string, len(c.QUAL)),
		YShares: make(map[string]wire.Bignum, len(c.YShares)),
		VKeys:   make(map[string]wire.Bignum, len(c.VerificationKeys)),
		Commit:  make(map[string][]wire.Bignum, len(c.Commitments)),
	}
	if public {
		w.Xi = wire.NewBignum(big.NewInt(0))
		w.Xpi = wire.NewBignum(big.NewInt(0))
	} else {
		w.Xi = wire.NewBignum(c.Xi.Big())
		w.Xpi = wire.NewBignum(c.Xpi.Big())
	}
	for i, id := range c.QUAL {
		w.QUAL[i] = string(id)
	}
	for id, v := range c.YShares {
		w.YShares[string(id)] = wire.NewBignum(v)
	}
	for id, v := range c.VerificationKeys {
		w.VKeys[string(id)] = wire.NewBignum(v)
	}
	for id, vec := range c.Commitments {
		bn := make([]wire.Bignum, len(vec))
		for i, v := range vec {
			bn[i] = wire.NewBignum(v)
		}
		w.Commit[string(id)] = bn
	}
	return wire.MarshalConfig(w)
}

// UnmarshalConfig decodes a config previously produced by Marshal. A
// config decoded from a public (zeroed) blob carries Xi = Xpi = nil.
func UnmarshalConfig(data []byte) (*Config, error) {
	var w wireConfig
	if err := wire.UnmarshalConfig(data, &w); err != nil {
		return nil, err
	}
	c := &Config{
		P: w.P.Int, Q: w.Q.Int, G: w.G.Int, H: w.H.Int,
		N: w.N, T: w.T, I: w.I,
		Y:                w.Y.Int,
		QUAL:             make(party.IDSlice, len(w.QUAL)),
		YShares:          make(map[party.ID]*big.Int, len(w.YShares)),
		VerificationKeys: make(map[party.ID]*big.Int, len(w.VKeys)),
		Commitments:      make(map[party.ID][]*big.Int, len(w.Commit)),
	}
	if w.Xi.Int != nil && w.Xi.Int.Sign() != 0 {
		d := &group.Domain{P: c.P, Q: c.Q, G: c.G, H: c.H}
		c.Xi = group.NewScalar(d, w.Xi.Int)
		c.Xpi = group.NewScalar(d, w.Xpi.Int)
	}
	for i, id := range w.QUAL {
		c.QUAL[i] = party.ID(id)
	}
	for id, v := range w.YShares {
		c.YShares[party.ID(id)] = v.Int
	}
	for id, v := range w.VKeys {
		c.VerificationKeys[party.ID(id)] = v.Int
	}
	for id, vec := range w.Commit {
		out := make([]*big.Int, len(vec))
		for i, v := range vec {
			out[i] = v.Int
		}
		c.Commitments[party.ID(id)] = out
	}
	return c, nil
}
