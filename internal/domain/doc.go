// Package domain holds the error taxonomy shared by the modelhost contexts.
//
// Errors that cross a context boundary travel as reason strings; FromReason
// restores the sentinel on the receiving side so callers can keep using
// errors.Is.
package domain
