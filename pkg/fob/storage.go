package fob

// Storage abstracts the non-volatile region holding the credential record.
//
// Save must be atomic: a power loss between erase and rewrite must never
// leave a record that is half old and half new. That atomicity is the
// implementation's responsibility (the device treats a Save error as "not
// durable" and refuses to acknowledge the triggering operation).
type Storage interface {
	// Load returns the persisted record, or ErrNoRecord if the region has
	// never been written.
	Load() (*CredentialRecord, error)

	// Save atomically replaces the persisted record.
	Save(r *CredentialRecord) error
}
