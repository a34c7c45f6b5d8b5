package epoch

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"playmint/crypto"
)

// SeedGenerator derives the shared pseudo-random epoch seed.
type SeedGenerator struct {
	chained bool
}

// NewSeedGenerator returns a generator; chained mixes the previous seed in.
func NewSeedGenerator(chained bool) SeedGenerator {
	return SeedGenerator{chained: chained}
}

// Next computes the seed for a check-in by addr at the given counter
// (block or slot height). The low eight digest bytes are read little-endian.
func (g SeedGenerator) Next(addr crypto.Address, counter uint64, prev *State) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], counter)
	parts := [][]byte{addr[:], buf[:]}
	if g.chained && prev.HasSeed() {
		var prevBuf [8]byte
		binary.LittleEndian.PutUint64(prevBuf[:], prev.Seed)
		parts = append(parts, prevBuf[:])
	}
	digest := ethcrypto.Keccak256(parts...)
	return binary.LittleEndian.Uint64(digest[:8])
}

// Refresh overwrites the shared seed. Last writer wins.
func (g SeedGenerator) Refresh(state *State, addr crypto.Address, counter, now uint64) uint64 {
	seed := g.Next(addr, counter, state)
	state.Seed = seed
	state.SeedSet = true
	state.SeedVersion++
	state.LastSeedTime = now
	return seed
}
