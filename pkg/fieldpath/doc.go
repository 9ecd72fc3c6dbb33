// Package fieldpath navigates arbitrarily nested values by dotted paths.
//
// A path like "customer.banking.iban" is resolved segment by segment against
// structs (exported fields, case-insensitive fallback), maps with string-like
// keys, pointers and interfaces. Resolution failures are reported as
// *NotFoundError carrying the longest path prefix that could not be resolved,
// so callers can distinguish a missing field from other errors.
//
// The generic helpers Required and Optional add type checking on top of
// Resolve: Required returns a *TypeError when the resolved value does not
// have the requested type, Optional swallows both missing fields and type
// mismatches and reports absence through its second return value.
package fieldpath
