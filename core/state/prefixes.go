package state

// Kind namespaces records of one entity type inside the shared keyspace.
type Kind string

const (
	KindEpoch           Kind = "epoch"
	KindPolicy          Kind = "policy"
	KindValidator       Kind = "validator"
	KindBeneficiary     Kind = "beneficiary"
	KindBeneficiaryName Kind = "beneficiary-name"
)
