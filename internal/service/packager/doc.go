// Package packager bundles a compiled firmware image with its manifest of
// auxiliary files into a version-tagged, timestamped ZIP archive.
//
// The pipeline is linear: validate the binary, lock the build directory,
// create the archive, add the renamed binary, add the manifest files. A
// missing binary aborts before anything is written; missing manifest files
// are skipped with a warning. Publishing, the history ledger and metrics
// run afterwards and never fail a finished archive.
package packager
