package quorum

import (
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"

	"playmint/crypto"
)

const (
	// ValidatorsPerGroup sizes the group population: groups = ceil(total/4).
	ValidatorsPerGroup = 4
	// DefaultAssignerCacheSize bounds the memoised group lookups.
	DefaultAssignerCacheSize = 4096
)

// GroupCount returns ceil(total / ValidatorsPerGroup).
func GroupCount(total uint64) uint64 {
	groups := total / ValidatorsPerGroup
	if total%ValidatorsPerGroup != 0 {
		groups++
	}
	return groups
}

// GroupID assigns addr to a group for the given seed. The Keccak-256 digest of
// addr || LE64(seed) is read big-endian from its first eight bytes and reduced
// modulo groups. Zero groups always yields group 0.
func GroupID(addr crypto.Address, seed, groups uint64) uint64 {
	if groups == 0 {
		return 0
	}
	var seedBytes [8]byte
	binary.LittleEndian.PutUint64(seedBytes[:], seed)
	digest := ethcrypto.Keccak256(addr[:], seedBytes[:])
	return binary.BigEndian.Uint64(digest[:8]) % groups
}

type groupKey struct {
	addr   crypto.Address
	seed   uint64
	groups uint64
}

// Assigner memoises GroupID. Results are identical to calling GroupID directly.
type Assigner struct {
	cache *lru.Cache
}

// NewAssigner builds an assigner with a bounded LRU memo.
func NewAssigner(size int) (*Assigner, error) {
	if size <= 0 {
		size = DefaultAssignerCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("quorum: assigner cache: %w", err)
	}
	return &Assigner{cache: cache}, nil
}

// Group returns the group id of addr.
func (a *Assigner) Group(addr crypto.Address, seed, groups uint64) uint64 {
	if a == nil || a.cache == nil {
		return GroupID(addr, seed, groups)
	}
	key := groupKey{addr: addr, seed: seed, groups: groups}
	if cached, ok := a.cache.Get(key); ok {
		return cached.(uint64)
	}
	id := GroupID(addr, seed, groups)
	a.cache.Add(key, id)
	return id
}
