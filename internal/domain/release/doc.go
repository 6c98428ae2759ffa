// Package release contains the core types of a firmware release: the
// version token, the compiled artifact, the manifest of auxiliary files and
// the archive produced from them.
//
// Naming rules live here so the packager, the history ledger and the tests
// agree on archive and binary names.
package release
