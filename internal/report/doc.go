// Package report turns a list of loans into a tabular artifact.
//
// All formats share the columns loan_id, asset_tag, borrower_id, issuer_id,
// issued_at, due_at and returned_at. Times are RFC 3339 in UTC; an open
// loan has an empty returned_at.
//
//	report.WriteCSV(w, loans)      // encoding/csv
//	report.Markdown(loans)         // GitHub-flavored table
//	report.HTML(loans)             // goldmark with the table extension
package report
