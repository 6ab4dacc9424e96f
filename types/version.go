// Package types defines the core domain types shared by the generation
// pipeline and combat simulator cores.
package types

// Version is the canonical project version, reported by the CLI and the
// daemon. Wire-format frames carry ContractVersion, not this value.
const Version = "0.1.0"

// ContractVersion is the schema version of the progress/combat frame
// envelopes. Bumped independently of Version when the wire shape changes.
const ContractVersion = "1"
