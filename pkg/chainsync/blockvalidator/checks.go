package blockvalidator

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-bitfield"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-chainsync/pkg/randomness"
	"github.com/filecoin-project/venus-chainsync/pkg/types"
)

// validateMinerLiveness checks that the miner exists in the power actor as
// of base's parent state. It does not check that the miner has any power,
// only that its claim is resolvable.
func (v *Validator) validateMinerLiveness(ctx context.Context, miner address.Address, base *types.TipSet) error {
	minerClaim, _, err := v.executor.GetPower(ctx, base.ParentStateRoot(), miner)
	if err != nil {
		return newErr(KindConsensus, "miner power unavailable: %v", err)
	}
	if minerClaim == nil {
		return newErr(KindConsensus, "power actor has no claim for miner %s", miner)
	}
	return nil
}

// validateBaseFee checks header.ParentBaseFee against the executor's own
// computation from base.
func (v *Validator) validateBaseFee(ctx context.Context, base *types.TipSet, header *types.BlockHeader) error {
	computed, err := v.executor.ComputeBaseFee(ctx, base, v.cfg.SmokeHeight)
	if err != nil {
		return newErr(KindExecutor, "computing base fee: %v", err)
	}
	if !computed.Equals(header.ParentBaseFee) {
		return newErr(KindConsensus, "unequal base fee: block %s, expected %s", header.ParentBaseFee, computed)
	}
	return nil
}

// validateParentWeight checks header.ParentWeight against base's own
// accumulated weight.
func (v *Validator) validateParentWeight(base *types.TipSet, header *types.BlockHeader) error {
	baseWeight := base.Weight()
	if !baseWeight.Equals(header.ParentWeight) {
		return newErr(KindConsensus, "unequal parent weight: block %s, expected %s", header.ParentWeight, baseWeight)
	}
	return nil
}

// validateStateAndReceiptRoot runs the executor on base and checks its
// computed state and receipt roots against the header's claims.
func (v *Validator) validateStateAndReceiptRoot(ctx context.Context, base *types.TipSet, header *types.BlockHeader) error {
	stateRoot, receiptRoot, err := v.executor.TipsetState(ctx, base)
	if err != nil {
		return newErr(KindExecutor, "running tipset state transition: %v", err)
	}
	if !stateRoot.Equals(header.ParentStateRoot) {
		return newErr(KindConsensus, "wrong state root: block %s, computed %s", header.ParentStateRoot, stateRoot)
	}
	if !receiptRoot.Equals(header.ParentMessageReceipts) {
		return newErr(KindConsensus, "wrong receipt root: block %s, computed %s", header.ParentMessageReceipts, receiptRoot)
	}
	return nil
}

// validateBlockSignature checks header.BlockSig covers the header's
// signing digest under workAddr.
func (v *Validator) validateBlockSignature(header *types.BlockHeader, workAddr address.Address) error {
	digest, err := header.SigningBytes()
	if err != nil {
		return newErr(KindExecutor, "computing header signing bytes: %v", err)
	}
	if err := v.verifier.VerifyBlockSignature(workAddr, digest, header.BlockSig); err != nil {
		return newErr(KindCrypto, "invalid block signature: %v", err)
	}
	return nil
}

// validateBeaconChain checks the header's beacon entries against the
// schedule's beacon for nv: chained beacons verify the signature chain
// against prevBeacon; unchained beacons verify each entry independently.
func (v *Validator) validateBeaconChain(nv network.Version, header *types.BlockHeader, parentEpoch abi.ChainEpoch, prevBeacon types.BeaconEntry) error {
	b := v.beacons.BeaconForVersion(nv)

	maxRound := b.MaxBeaconRoundForEpoch(nv, header.Height)
	if maxRound > prevBeacon.Round && len(header.BeaconEntries) == 0 {
		return newErr(KindConsensus, "missing beacon entries: expected up to round %d, base was at round %d", maxRound, prevBeacon.Round)
	}

	if len(header.BeaconEntries) == 0 {
		return nil
	}

	ok, err := b.VerifyEntries(header.BeaconEntries, prevBeacon)
	if err != nil {
		return newErr(KindConsensus, "beacon validation: %v", err)
	}
	if !ok {
		return newErr(KindConsensus, "beacon entries failed verification")
	}
	return nil
}

// validateTicketElection verifies the block's ticket VRF proof.
func (v *Validator) validateTicketElection(header *types.BlockHeader, base *types.TipSet, prevBeacon types.BeaconEntry, workAddr address.Address) error {
	entropy := header.Miner.Bytes()
	if header.Height > v.cfg.SmokeHeight {
		minTicket := base.MinTicket()
		if minTicket == nil {
			return newErr(KindConsensus, "base tipset has no ticket")
		}
		entropy = append(append([]byte{}, entropy...), minTicket.VRFProof...)
	}

	beaconBaseEntry := beaconBase(header, prevBeacon)
	vrfBase, err := randomness.Draw(beaconBaseEntry.Signature, randomness.TicketProduction, header.Height-v.cfg.TicketRandomnessLookback, entropy)
	if err != nil {
		return newErr(KindExecutor, "drawing ticket randomness: %v", err)
	}

	if err := v.verifier.VerifyVRF(workAddr, vrfBase, header.Ticket.VRFProof); err != nil {
		return newErr(KindCrypto, "invalid ticket vrf: %v", err)
	}
	return nil
}

// validateWinnerElection verifies the election proof: win count claim,
// mining eligibility, VRF, slashing status, and the claimed win count
// against actual power.
func (v *Validator) validateWinnerElection(
	ctx context.Context,
	header *types.BlockHeader,
	base, lookbackTipset *types.TipSet,
	lookbackStateRoot cid.Cid,
	prevBeacon types.BeaconEntry,
	workAddr address.Address,
) error {
	if header.ElectionProof.WinCount < 1 {
		return newErr(KindConsensus, "block is not claiming a win")
	}

	eligible, err := v.executor.EligibleToMine(ctx, header.Miner, base, lookbackTipset)
	if err != nil {
		return newErr(KindExecutor, "checking mining eligibility: %v", err)
	}
	if !eligible {
		return newErr(KindConsensus, "miner %s is not eligible to mine", header.Miner)
	}

	beaconBaseEntry := beaconBase(header, prevBeacon)
	entropy := header.Miner.Bytes()
	vrfBase, err := randomness.Draw(beaconBaseEntry.Signature, randomness.ElectionProofProduction, header.Height, entropy)
	if err != nil {
		return newErr(KindExecutor, "drawing election randomness: %v", err)
	}
	if err := v.verifier.VerifyVRF(workAddr, vrfBase, header.ElectionProof.VRFProof); err != nil {
		return newErr(KindCrypto, "invalid election proof vrf: %v", err)
	}

	slashed, err := v.executor.IsMinerSlashed(ctx, header.Miner, base.ParentStateRoot())
	if err != nil {
		return newErr(KindExecutor, "checking slashing status: %v", err)
	}
	if slashed {
		return newErr(KindConsensus, "miner %s is slashed", header.Miner)
	}

	minerClaim, totalClaim, err := v.executor.GetPower(ctx, lookbackStateRoot, header.Miner)
	if err != nil {
		return newErr(KindExecutor, "resolving lookback power: %v", err)
	}
	if minerClaim == nil || totalClaim == nil {
		return newErr(KindConsensus, "miner power unavailable at lookback")
	}

	expectedWinCount := computeWinCount(header.ElectionProof.VRFProof, minerClaim.QualityAdjPower, totalClaim.QualityAdjPower)
	if header.ElectionProof.WinCount != expectedWinCount {
		return newErr(KindConsensus, "miner win claims incorrect: claimed %d, computed %d", header.ElectionProof.WinCount, expectedWinCount)
	}
	return nil
}

// verifyWinningPoSt validates the winning-PoSt proof over the challenged
// sector set.
func (v *Validator) verifyWinningPoSt(ctx context.Context, nv network.Version, header *types.BlockHeader, prevBeacon types.BeaconEntry, lookbackStateRoot cid.Cid) error {
	beaconBaseEntry := beaconBase(header, prevBeacon)
	entropy := header.Miner.Bytes()
	rand, err := randomness.Draw(beaconBaseEntry.Signature, randomness.WinningPoStChallengeSeed, header.Height, entropy)
	if err != nil {
		return newErr(KindExecutor, "drawing winning post randomness: %v", err)
	}

	sectors, err := v.executor.GetSectorsForWinningPoSt(ctx, nv, lookbackStateRoot, header.Miner, rand)
	if err != nil {
		return newErr(KindExecutor, "resolving winning post sectors: %v", err)
	}

	challenged := make([]abi.SectorNumber, len(sectors))
	challengedSet := make([]uint64, len(sectors))
	for i, s := range sectors {
		challenged[i] = s.SectorNumber
		challengedSet[i] = uint64(s.SectorNumber)
	}

	// The executor is expected to return each challenged sector at most
	// once; represent the set as a bitfield (the same representation
	// miner actor state itself uses for sector sets) to catch an executor
	// bug that hands back the same sector twice.
	challengedBits, err := bitfield.NewFromSet(challengedSet)
	if err != nil {
		return newErr(KindExecutor, "building challenged-sector bitfield: %v", err)
	}
	count, err := challengedBits.Count()
	if err != nil {
		return newErr(KindExecutor, "counting challenged sectors: %v", err)
	}
	if count != uint64(len(challenged)) {
		return newErr(KindExecutor, "executor returned duplicate challenged sectors: %d unique of %d", count, len(challenged))
	}

	ok, err := v.postVerifier.VerifyWinningPoSt(header.Miner, rand, header.WinPoStProof, challenged)
	if err != nil {
		return newErr(KindConsensus, "winning post validation: %v", err)
	}
	if !ok {
		return newErr(KindConsensus, "winning post proof is invalid")
	}
	return nil
}
