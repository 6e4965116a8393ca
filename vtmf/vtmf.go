// Package vtmf implements the Verifiable l-out-of-l Threshold Masking
// Function (Barnett-Smart): joint ElGamal key
// generation, masking, remasking, and threshold decryption over G = QR_p,
// each operation backed by a non-interactive Chaum-Pedersen or Schnorr
// proof.
package vtmf

import (
	"math/big"

	"github.com/libtmcg/tmcg/pkg/bign"
	"github.com/libtmcg/tmcg/pkg/errs"
	"github.com/libtmcg/tmcg/pkg/group"
	"github.com/libtmcg/tmcg/pkg/hash"
	"github.com/libtmcg/tmcg/pkg/party"
)

// KeyShare is one party's contribution to the joint VTMF key: the secret
// exponent x_i, the published h_i = g^x_i, and the Schnorr proof of
// knowledge of x_i.
type KeyShare struct {
	X    *group.Scalar
	H    *group.Element
	Proof *group.SchnorrProof
}

// VTMF is one party's view of the joint key: its own share plus the
// running aggregate h = Π h_i.
type VTMF struct {
	Domain *group.Domain
	Self   party.ID
	x      *group.Scalar // local secret exponent; nil once forgotten
	H      *group.Element
}

// New starts a fresh VTMF instance for self over d, sampling the local
// secret exponent.
func New(d *group.Domain, self party.ID) (*VTMF, *KeyShare, error) {
	x, err := group.RandomScalar(d, bign.VeryStrong)
	if err != nil {
		return nil, nil, errs.Wrap(errs.CryptoFailure, err, "vtmf: sampling key share")
	}
	proof, h, err := group.ProveSchnorr(d, "vtmf-keygen", x, bign.VeryStrong)
	if err != nil {
		return nil, nil, errs.Wrap(errs.CryptoFailure, err, "vtmf: proving key share")
	}
	v := &VTMF{Domain: d, Self: self, x: x, H: group.Identity(d)}
	return v, &KeyShare{X: x, H: h, Proof: proof}, nil
}

// Absorb verifies a peer's Schnorr PoK for h_i and, if valid, folds h_i
// into the running joint key h ← h · h_i. It returns an error classified
// as CryptoFailure (not ProtocolViolation) since a failed PoK here means
// the peer's contribution is cryptographically invalid, not merely
// malformed.
func (v *VTMF) Absorb(peer party.ID, h *group.Element, proof *group.SchnorrProof) error {
	if !group.VerifySchnorr(v.Domain, "vtmf-keygen", h, proof) {
		return errs.ForPeer(errs.CryptoFailure, string(peer), "vtmf: invalid key-share proof")
	}
	if v.H == nil {
		v.H = group.Identity(v.Domain)
	}
	v.H = v.H.Mul(h)
	return nil
}

// PublicKey returns the current joint key h.
func (v *VTMF) PublicKey() *group.Element { return v.H }

// Forget discards the local secret exponent. After this call ProveDecrypt
// fails with Disqualified; Mask and Remask use only the joint key and keep
// working. Used once a party no longer needs to decrypt (e.g. after Refresh).
func (v *VTMF) Forget() { v.x = nil }

// Ciphertext is an ElGamal pair over G.
type Ciphertext struct {
	C1, C2 *group.Element
}

// Mask encrypts m under the joint key h, returning the ciphertext and the
// randomness r used, so the caller can build ProveMask immediately.
func (v *VTMF) Mask(m *group.Element) (Ciphertext, *group.Scalar, error) {
	r, err := group.RandomScalar(v.Domain, bign.VeryStrong)
	if err != nil {
		return Ciphertext{}, nil, errs.Wrap(errs.CryptoFailure, err, "vtmf: sampling mask randomness")
	}
	c1 := group.Generator(v.Domain).ExpSecret(r)
	c2 := m.Mul(v.H.ExpSecret(r))
	return Ciphertext{C1: c1, C2: c2}, r, nil
}

// ProveMask proves log_g(c1) = log_h(c2/m) non-interactively.
func (v *VTMF) ProveMask(m *group.Element, c Ciphertext, r *group.Scalar) (*group.ChaumPedersenProof, error) {
	return group.ProveChaumPedersen(v.Domain, "vtmf-mask", group.Generator(v.Domain), v.H, r, bign.VeryStrong)
}

// VerifyMask checks a ProveMask proof against the public statement.
func (v *VTMF) VerifyMask(m *group.Element, c Ciphertext, proof *group.ChaumPedersenProof) bool {
	ratio := c.C2.Mul(m.Inv())
	return group.VerifyChaumPedersen(v.Domain, "vtmf-mask", group.Generator(v.Domain), v.H, c.C1, ratio, proof)
}

// Remask re-randomizes c without changing the underlying plaintext,
// returning the new ciphertext and the randomness used.
func (v *VTMF) Remask(c Ciphertext) (Ciphertext, *group.Scalar, error) {
	r, err := group.RandomScalar(v.Domain, bign.VeryStrong)
	if err != nil {
		return Ciphertext{}, nil, errs.Wrap(errs.CryptoFailure, err, "vtmf: sampling remask randomness")
	}
	c1 := c.C1.Mul(group.Generator(v.Domain).ExpSecret(r))
	c2 := c.C2.Mul(v.H.ExpSecret(r))
	return Ciphertext{C1: c1, C2: c2}, r, nil
}

// ProveRemask proves log_g(c'1/c1) = log_h(c'2/c2).
func (v *VTMF) ProveRemask(orig, remasked Ciphertext, r *group.Scalar) (*group.ChaumPedersenProof, error) {
	return group.ProveChaumPedersen(v.Domain, "vtmf-remask", group.Generator(v.Domain), v.H, r, bign.VeryStrong)
}

// VerifyRemask checks a ProveRemask proof.
func (v *VTMF) VerifyRemask(orig, remasked Ciphertext, proof *group.ChaumPedersenProof) bool {
	g1ratio := remasked.C1.Mul(orig.C1.Inv())
	g2ratio := remasked.C2.Mul(orig.C2.Inv())
	return group.VerifyChaumPedersen(v.Domain, "vtmf-remask", group.Generator(v.Domain), v.H, g1ratio, g2ratio, proof)
}

// DecryptShare is one party's contribution to threshold-decrypting a
// ciphertext: d_i = c1^x_i, the party's public h_i, and a proof that
// log_c1(d_i) = log_g(h_i).
type DecryptShare struct {
	D     *group.Element
	H     *group.Element
	Proof *group.ChaumPedersenProof
}

// ProveDecrypt builds this party's decryption share for ciphertext c1. It
// fails with Disqualified if the local secret has been forgotten; the
// plaintext must lie in a caller-chosen encoding of G.
func (v *VTMF) ProveDecrypt(c1 *group.Element) (DecryptShare, error) {
	if v.x == nil {
		return DecryptShare{}, errs.New(errs.Disqualified, "vtmf: local key share forgotten, cannot decrypt")
	}
	d := c1.ExpSecret(v.x)
	h := group.Generator(v.Domain).ExpSecret(v.x)
	proof, err := group.ProveChaumPedersen(v.Domain, "vtmf-decrypt", c1, group.Generator(v.Domain), v.x, bign.VeryStrong)
	if err != nil {
		return DecryptShare{}, errs.Wrap(errs.CryptoFailure, err, "vtmf: proving decryption share")
	}
	return DecryptShare{D: d, H: h, Proof: proof}, nil
}

// DecryptAccumulator folds decryption shares for one ciphertext across
// parties via Verify_Initialize / Verify_Update / Verify_Finalize.
type DecryptAccumulator struct {
	d    *group.Domain
	c1   *group.Element
	acc  *group.Element
}

// VerifyInitialize seeds the accumulator with this party's own share.
func VerifyInitialize(d *group.Domain, c1 *group.Element, own DecryptShare) *DecryptAccumulator {
	return &DecryptAccumulator{d: d, c1: c1, acc: own.D}
}

// VerifyUpdate checks a peer's decryption share and folds it in, or
// returns a peer-scoped CryptoFailure on an invalid proof.
func (a *DecryptAccumulator) VerifyUpdate(peer party.ID, share DecryptShare) error {
	if !group.VerifyChaumPedersen(a.d, "vtmf-decrypt", a.c1, group.Generator(a.d), share.D, share.H, share.Proof) {
		return errs.ForPeer(errs.CryptoFailure, string(peer), "vtmf: invalid decryption share")
	}
	a.acc = a.acc.Mul(share.D)
	return nil
}

// VerifyFinalize recovers the plaintext element from c2 and the
// accumulated d, per m = c2 * d^-1 mod p.
func (a *DecryptAccumulator) VerifyFinalize(c2 *group.Element) (*group.Element, error) {
	m := c2.Mul(a.acc.Inv())
	if !m.Valid() {
		return nil, errs.New(errs.CryptoFailure, "vtmf: recovered plaintext is not a valid group element")
	}
	return m, nil
}

// EncodeMessage maps a small non-negative integer into G by trial
// increment, the standard ElGamal-over-QR_p encoding: find the smallest
// v >= 2*m+1 that is a quadratic residue, spending at most a handful of
// trials in practice.
func EncodeMessage(d *group.Domain, m uint64) (*group.Element, error) {
	candidate := new(big.Int).SetUint64(2*m + 1)
	for i := 0; i < 1<<20; i++ {
		v := new(big.Int).Add(candidate, big.NewInt(int64(i)))
		v.Mod(v, d.P)
		if v.Sign() == 0 {
			continue
		}
		if group.IsQuadraticResidue(v, d.P) {
			return group.NewElement(d, v), nil
		}
	}
	return nil, errs.New(errs.InvalidArgument, "vtmf: could not encode message %d into G", m)
}
