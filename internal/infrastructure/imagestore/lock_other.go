//go:build !linux && !darwin

package imagestore

// tryLockFile is a no-op where flock is unavailable; the in-process guard still applies.
func tryLockFile(string) (unlock func(), ok bool, err error) {
	return func() {}, true, nil
}
