// Package claim implements the witness-quorum claim verification engine:
// canonical claim hashing and serialization, deterministic witness selection,
// ECDSA signature recovery over prefixed personal messages, and the gated
// proof verification pipeline shared with off-chain signing tools.
package claim
