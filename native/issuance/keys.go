package issuance

import (
	"encoding/binary"

	"playmint/core/state"
	"playmint/crypto"
)

var singleton = []byte("current")

func epochKey() state.Key { return state.NewKey(state.KindEpoch, singleton) }

func policyKey() state.Key { return state.NewKey(state.KindPolicy, singleton) }

func validatorKey(addr crypto.Address) state.Key {
	return state.NewKey(state.KindValidator, addr[:])
}

func beneficiaryKey(id uint64) state.Key {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return state.NewKey(state.KindBeneficiary, buf[:])
}

func nameKey(normalized string) state.Key {
	return state.NewKey(state.KindBeneficiaryName, []byte(normalized))
}
