// Package activity is the audit trail of lendtrack. Entries are appended,
// never edited or removed, and listed newest first.
package activity
