package match

// claimSet tracks which supporting documents have already been claimed by
// an earlier invoice in the run. Claiming is the one serialized step of
// the pipeline: the matcher walks invoices in input order and a claimed
// document leaves the candidate pool for every later invoice.
type claimSet struct {
	claimed map[string]string // doc ID -> claiming invoice ID
}

func newClaimSet() *claimSet {
	return &claimSet{claimed: make(map[string]string)}
}

// Claim records a document as claimed by an invoice. It reports false when
// the document was already claimed.
func (c *claimSet) Claim(docID, invoiceID string) bool {
	if _, taken := c.claimed[docID]; taken {
		return false
	}
	c.claimed[docID] = invoiceID
	return true
}

// IsClaimed reports whether a document has been claimed.
func (c *claimSet) IsClaimed(docID string) bool {
	_, taken := c.claimed[docID]
	return taken
}
