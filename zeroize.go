package fscrypt

import "runtime"

// wipe overwrites b with zeros in place. It is used to scrub key material,
// derived secrets, and scratch buffers as soon as they are no longer needed.
// The runtime.KeepAlive call prevents the compiler from proving the writes
// dead and eliding them when b is otherwise unused after this call.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// Secret wraps a byte slice that must be wiped before it is discarded. The
// zero value is not usable; construct with newSecret or take ownership of an
// existing slice with wrapSecret.
type Secret struct {
	b     []byte
	wiped bool
}

// newSecret allocates a new Secret of length n.
func newSecret(n int) *Secret {
	return &Secret{b: make([]byte, n)}
}

// wrapSecret takes ownership of b, returning a Secret backed by it. Callers
// must not retain or mutate b through any other reference afterward.
func wrapSecret(b []byte) *Secret {
	return &Secret{b: b}
}

// Bytes returns the secret's backing slice. The returned slice aliases the
// Secret's storage and becomes invalid after Wipe is called.
func (s *Secret) Bytes() []byte {
	if s == nil || s.wiped {
		return nil
	}
	return s.b
}

// Len reports the length of the secret.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Wipe zeroes the secret's backing memory. It is safe to call more than
// once and safe to call on a nil Secret.
func (s *Secret) Wipe() {
	if s == nil || s.wiped {
		return
	}
	wipe(s.b)
	s.wiped = true
}
