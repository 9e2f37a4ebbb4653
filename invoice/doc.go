// Package invoice defines the invoice record, its lifecycle states, the
// deterministic address an invoice is stored at, and the fixed byte layout
// the record is encoded in.
package invoice
