// Package versioner resolves the firmware version token from the working
// tree and turns it into the compiler define consumed by the firmware.
//
// Resolution never fails: when git is missing or the directory is not a
// repository the token is empty and the build continues.
package versioner
