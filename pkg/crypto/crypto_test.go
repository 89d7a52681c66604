package crypto

import (
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

func mustAddr(t *testing.T, s string) address.Address {
	t.Helper()
	a, err := address.NewFromString(s)
	require.NoError(t, err)
	return a
}

func TestFakeVerifierRejectsConfiguredSigner(t *testing.T) {
	v := NewFakeVerifier()
	bad := mustAddr(t, "t01000")
	v.RejectSigners[bad] = struct{}{}

	err := v.VerifyVRF(bad, []byte("in"), []byte("proof"))
	require.Error(t, err)

	good := mustAddr(t, "t01001")
	err = v.VerifyVRF(good, []byte("in"), []byte("proof"))
	require.NoError(t, err)
}

func TestFakeVerifierAggregateLengthMismatch(t *testing.T) {
	v := NewFakeVerifier()
	err := v.VerifyAggregateSeckSignature([]byte("sig"), []address.Address{mustAddr(t, "t01000")}, nil)
	require.Error(t, err)
}

func TestInsecureWinningPoStVerifier(t *testing.T) {
	v := InsecureWinningPoStVerifier{}

	ok, err := v.VerifyWinningPoSt(mustAddr(t, "t01000"), []byte("rand"), []types.PoStProof{
		{ProofBytes: []byte("valid_proof")},
	}, nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = v.VerifyWinningPoSt(mustAddr(t, "t01000"), []byte("rand"), []types.PoStProof{
		{ProofBytes: []byte("garbage")},
	}, nil)
	require.NoError(t, err)
	require.False(t, ok)
}
