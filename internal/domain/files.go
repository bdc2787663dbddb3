package domain

// FileArea abstracts per-user file storage. The initial implementation
// keeps a directory per user on local disk; the interface allows swapping
// to an object store later. Implementations must scope every name to the
// given user's area and reject names that escape it.
type FileArea interface {
	// Ensure creates the user's area if absent. It is idempotent and
	// safe against two requests creating the area concurrently.
	Ensure(userID int64) error
	// Save writes data into the user's area, overwriting any existing
	// file of the same name.
	Save(userID int64, name string, data []byte) error
	// List enumerates filenames in the user's area. A missing area
	// yields an empty listing, not an error.
	List(userID int64) ([]string, error)
	Get(userID int64, name string) ([]byte, error)
	Delete(userID int64, name string) error
	// Rename moves oldName over newName within the user's area,
	// replacing newName if it exists.
	Rename(userID int64, oldName, newName string) error
	// Path resolves a name to an absolute path inside the user's area
	// without requiring the file to exist.
	Path(userID int64, name string) (string, error)

	// Snapshot variants operate on the snapshots subdirectory of the
	// user's area, with the same scoping rules.
	SaveSnapshot(userID int64, name string, data []byte) error
	GetSnapshot(userID int64, name string) ([]byte, error)
	DeleteSnapshot(userID int64, name string) error
}
