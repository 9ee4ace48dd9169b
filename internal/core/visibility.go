package core

// Visible reports whether the viewer may see and mutate the transaction.
// A transaction is visible when it belongs to the viewer's couple scope, or
// when the viewer owns it and it has not been claimed by some other couple.
// An absent (nil) viewer sees nothing.
//
// This predicate mirrors the row scoping the persistence gateway applies
// server-side; it is a UI-level gate, not a substitute for that scoping.
func Visible(v *Viewer, t Transaction) bool {
	if v == nil {
		return false
	}
	if v.CoupleID != "" && t.CoupleID == v.CoupleID {
		return true
	}
	return t.OwnerID == v.ID && (t.CoupleID == "" || t.CoupleID == v.CoupleID)
}

// FilterVisible returns the subset of txs visible to the viewer, preserving
// input order.
func FilterVisible(v *Viewer, txs []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if Visible(v, t) {
			out = append(out, t)
		}
	}
	return out
}
