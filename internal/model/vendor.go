package model

import "strings"

// FoldVendor returns the comparison form of a vendor name: trimmed,
// case-folded, inner whitespace collapsed. Display forms are kept as
// extracted; all equality checks go through this.
func FoldVendor(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// SameVendor reports whether two vendor names are equal in comparison form.
func SameVendor(a, b string) bool {
	return FoldVendor(a) == FoldVendor(b)
}
