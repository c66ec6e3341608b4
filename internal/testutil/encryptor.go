package testutil

import (
	"trail-go/internal/encryption"
	"trail-go/internal/objectstore"
	"trail-go/internal/remote"
	"trail-go/internal/trail"
)

// NewTestEncryptor returns a reversible encryptor with no key material.
func NewTestEncryptor() trail.Encryptor {
	return encryption.NewPlainEncryptor()
}

// NewTestObjectStore returns an empty in-memory object store.
func NewTestObjectStore() *objectstore.MemoryStore {
	return objectstore.NewMemoryStore("")
}

// NewTestRemote returns an in-memory backend whose route ids are "id-1",
// "id-2", and so on.
func NewTestRemote() *remote.MemoryRemote {
	return remote.NewMemoryRemote(NewStubIDGenerator())
}
