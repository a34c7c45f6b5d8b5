package types

// Event represents a typed event emitted by the issuance engine.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
