package blockvalidator

import "fmt"

// Kind classifies a block validation failure into the policy buckets
// callers need: whether the block CID should be cached as bad, and whether
// the failure is transient (the same block might validate later).
type Kind int

const (
	KindUnknown Kind = iota

	// KindStructural covers missing signature/aggregate/ticket/election
	// proof: a block that can never become valid.
	KindStructural

	// KindTimeTravel is a timestamp too far in the future. Not cached bad:
	// the same block can validate once the clock catches up.
	KindTimeTravel

	// KindParentNotFound means the base tipset isn't resolvable yet. Not
	// cached bad: transient, retry after fetching the parent.
	KindParentNotFound

	// KindConsensus covers wrong weight, wrong state/receipt root, wrong
	// win count, ineligible miner, slashed miner, bad VRF/beacon chain.
	KindConsensus

	// KindCrypto covers invalid BLS aggregate or SECP signatures.
	KindCrypto

	// KindExecutor surfaces state-tree load/compute failures from the
	// external executor; not cached bad, since the fault is local.
	KindExecutor
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindTimeTravel:
		return "time_travel"
	case KindParentNotFound:
		return "parent_not_found"
	case KindConsensus:
		return "consensus"
	case KindCrypto:
		return "crypto"
	case KindExecutor:
		return "executor"
	default:
		return "unknown"
	}
}

// CacheableAsBad reports whether a failure of this kind is grounds for
// marking the block CID in the bad-block cache. Time travel and missing
// parents are transient; executor faults are local, not a property of the
// block itself.
func (k Kind) CacheableAsBad() bool {
	switch k {
	case KindStructural, KindConsensus, KindCrypto:
		return true
	default:
		return false
	}
}

// Error is one named validation failure, tagged with the policy bucket it
// belongs to.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
