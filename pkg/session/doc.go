// Package session holds the single authenticated console session of the
// process.
//
// A Manager owns the Session value. Callers borrow a copy through Acquire,
// ask for a fresh login through Renew, and report an expired session through
// Invalidate. The session identifier rotates while the console is used; the
// Manager pulls the latest value from its Driver whenever a copy is handed
// out or a login completes.
package session
