// Package vault provides off-host replication targets for backup
// archives. Replication is optional and never fatal to an update run.
package vault

import "io"

// Vault stores named backup archives. Names are the archive filenames
// from the backup directory, possibly with an encryption suffix.
// All operations stream through io.Reader/io.Writer so large archives
// never need to fit in memory.
type Vault interface {
	// Put stores an archive under name. Storing an existing name again
	// is a no-op; archives are immutable once created.
	// size is the number of bytes that will be read from r.
	Put(name string, r io.Reader, size int64) error

	// Get retrieves the archive stored under name and writes it to w.
	Get(name string, w io.Writer) error

	// List returns the names of all stored archives.
	List() ([]string, error)

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup() error
}
