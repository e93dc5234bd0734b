package plexup

// UpdateAvailable reports whether the remote version differs from the
// installed one. The comparison is exact string equality: versions are
// opaque tokens with no ordering semantics, so a remote version that is
// lexically older still counts as an available update.
func UpdateAvailable(installed, latest string) bool {
	return installed != latest
}
