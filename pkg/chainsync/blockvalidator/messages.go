package blockvalidator

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/network"

	cryptoiface "github.com/filecoin-project/venus-chainsync/pkg/crypto"
	"github.com/filecoin-project/venus-chainsync/pkg/chainsync/tipsetvalidator"
	"github.com/filecoin-project/venus-chainsync/pkg/state"
	"github.com/filecoin-project/venus-chainsync/pkg/store"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// blockGasLimit bounds the sum of gas limits across all messages in a
// single block.
const blockGasLimit = 10_000_000_000

// Per-byte and per-message on-chain inclusion cost, mirroring the shape of
// the pricelist's on_chain_message charge: a fixed base cost plus a
// per-encoded-byte cost, independent of what the message actually does once
// executed (gas modeling beyond inclusion is out of scope, see spec.md
// Non-goals).
const (
	onChainMessageBaseGas    = 64
	onChainMessageGasPerByte = 1
)

// minInclusionGas computes the minimum gas a message of the given encoded
// length must declare to be includable in a block.
func minInclusionGas(encodedLen int) int64 {
	return onChainMessageBaseGas + onChainMessageGasPerByte*int64(encodedLen)
}

// evmEnablingVersion is the network version at and above which delegated
// (Ethereum-style) message signatures are accepted.
const evmEnablingVersion = network.Version18

// validateBlockMessages implements the per-block message check: BLS
// aggregate verification, per-sender strict sequence monotonicity, gas
// limit bounds, sender account validity, SECP signature verification, and
// the final message-root equality check against header.Messages.
func validateBlockMessages(
	ctx context.Context,
	executor state.Executor,
	verifier cryptoiface.Verifier,
	bs store.Blockstore,
	nv network.Version,
	base *types.TipSet,
	header *types.BlockHeader,
	blsMsgs []*types.Message,
	secpMsgs []*types.SignedMessage,
) error {
	if len(blsMsgs) > 0 && header.BLSAggregate == nil {
		return newErr(KindStructural, "block has BLS messages but no aggregate signature")
	}

	expectedSeq := map[address.Address]uint64{}
	var totalGas int64

	checkCommon := func(from address.Address, sequence uint64, gasLimit int64, encodedLen int) error {
		actor, err := executor.GetActor(ctx, from, base.ParentStateRoot())
		if err != nil {
			return newErr(KindExecutor, "resolving sender actor %s: %v", from, err)
		}
		if actor == nil {
			return newErr(KindConsensus, "sender %s does not exist in parent state", from)
		}

		expected, seen := expectedSeq[from]
		if !seen {
			expected = actor.Nonce
		}
		if sequence != expected {
			return newErr(KindConsensus, "sender %s: sequence %d does not match expected %d", from, sequence, expected)
		}
		expectedSeq[from] = sequence + 1

		if gasLimit <= 0 {
			return newErr(KindConsensus, "sender %s: non-positive gas limit", from)
		}
		if minGas := minInclusionGas(encodedLen); gasLimit < minGas {
			return newErr(KindConsensus, "sender %s: gas limit %d below minimum inclusion gas %d for %d-byte message", from, gasLimit, minGas, encodedLen)
		}
		totalGas += gasLimit
		if totalGas > blockGasLimit {
			return newErr(KindConsensus, "block gas limit exceeded: %d > %d", totalGas, int64(blockGasLimit))
		}
		return nil
	}

	digests := make([][]byte, 0, len(blsMsgs))
	signers := make([]address.Address, 0, len(blsMsgs))
	for _, m := range blsMsgs {
		encoded, err := m.MarshalCBOR()
		if err != nil {
			return newErr(KindStructural, "encoding bls message for sender %s: %v", m.From, err)
		}
		if err := checkCommon(m.From, m.Sequence, m.GasLimit, len(encoded)); err != nil {
			return err
		}
		digests = append(digests, m.SigningBytes())
		signers = append(signers, m.From)
	}

	if len(blsMsgs) > 0 {
		if err := verifier.VerifyAggregateSeckSignature(header.BLSAggregate.Data, signers, digests); err != nil {
			return newErr(KindCrypto, "invalid bls aggregate: %v", err)
		}
	}

	for _, sm := range secpMsgs {
		m := sm.Message
		encoded, err := types.MarshalCBOR(sm)
		if err != nil {
			return newErr(KindStructural, "encoding secp message for sender %s: %v", m.From, err)
		}
		if err := checkCommon(m.From, m.Sequence, m.GasLimit, len(encoded)); err != nil {
			return err
		}

		if sm.SigType() == types.SigTypeDelegated && nv < evmEnablingVersion {
			return newErr(KindConsensus, "delegated message signature type rejected below network version %d", evmEnablingVersion)
		}

		sig := sm.Signature
		if err := verifier.VerifyBlockSignature(m.From, m.SigningBytes(), &sig); err != nil {
			return newErr(KindCrypto, "invalid secp signature for sender %s: %v", m.From, err)
		}
	}

	msgRoot, err := tipsetvalidator.ComputeMsgRoot(ctx, bs, blsMsgs, secpMsgs)
	if err != nil {
		return newErr(KindExecutor, "computing message root: %v", err)
	}
	if !msgRoot.Equals(header.Messages) {
		return newErr(KindConsensus, "wrong message root: block %s, computed %s", header.Messages, msgRoot)
	}
	return nil
}
