package validate

import (
	"sync"

	"github.com/fathomworks/tally-ho/internal/model"
)

// Registry tracks invoice identities already seen in a run for duplicate
// detection. It is the one piece of shared state the parallel validation
// phase mutates, so registration is a single atomic check-and-record under
// a mutex.
type Registry struct {
	ids    map[string]string // invoice ID -> source file
	hashes map[string]string // identity hash -> invoice ID
	mu     sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ids:    make(map[string]string),
		hashes: make(map[string]string),
	}
}

// Register records an invoice's identity. It reports whether the invoice
// ID or the vendor+amount+date identity was already registered by an
// earlier invoice.
func (r *Registry) Register(inv *model.InvoiceRecord) (duplicateID, duplicateIdentity bool) {
	hash := inv.IdentityHash()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.ids[inv.ID]; seen {
		duplicateID = true
	} else {
		r.ids[inv.ID] = inv.SourceFile
	}

	if prior, seen := r.hashes[hash]; seen && prior != inv.ID {
		duplicateIdentity = true
	} else if !seen {
		r.hashes[hash] = inv.ID
	}

	return duplicateID, duplicateIdentity
}
