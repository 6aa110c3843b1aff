// Package finding provides the severity scale shared by the secret
// scanner, the domain categorizer and every export format.
//
// Usage:
//
//	if f.Severity.Rank() < finding.High.Rank() {
//	    // critical
//	}
//	level := f.Severity.ToSARIF()
package finding
