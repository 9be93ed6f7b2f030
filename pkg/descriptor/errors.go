package descriptor

import "errors"

// Descriptor errors.
var (
	ErrInvalidDescriptor   = errors.New("invalid descriptor")
	ErrDescriptorSanity    = errors.New("descriptor sanity check failed")
	ErrHardenedDerivation  = errors.New("descriptor needs hardened derivation from a public key")
	ErrMultiPathDescriptor = errors.New("descriptor has multiple derivation paths")
	ErrNoPrivateKey        = errors.New("descriptor has no private key")
	ErrScriptMismatch      = errors.New("output does not pay the descriptor script")
)
