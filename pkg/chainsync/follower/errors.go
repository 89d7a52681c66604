package follower

import "github.com/pkg/errors"

// ErrForkLengthExceedsFinality is returned by the reverse header walk's
// fork resolution once 500 fork-side tipsets have been examined with no
// common ancestor found. Fatal: the follower does not attempt to sync
// past it.
var ErrForkLengthExceedsFinality = errors.New("chain fork length exceeds finality threshold")

// ErrForkAtGenesis is returned when the reverse walk reaches epoch 0
// without finding a common ancestor with the local chain. Fatal.
var ErrForkAtGenesis = errors.New("chain fork reaches genesis block without a common ancestor")

// ErrNoPeersAvailable reports that no peer is left to ask for headers or
// messages. Nothing in this package returns it: when net.Context has no
// peers, the range syncer wraps net.Context's own error instead.
var ErrNoPeersAvailable = errors.New("no peers available to sync from")

// InvalidBlockPolicy governs how spawnValidate treats block-validation
// failures. Strict, used during range sync, records failures whose
// Kind.CacheableAsBad is true (structural/consensus/crypto) in the shared
// bad-block cache and never TimeTravel/ParentNotFound ones; Forgiving, for
// the single-tipset catch-up path, records nothing in the shared cache, so
// a transient network hiccup does not permanently poison a block.
type InvalidBlockPolicy int

const (
	Strict InvalidBlockPolicy = iota
	Forgiving
)
