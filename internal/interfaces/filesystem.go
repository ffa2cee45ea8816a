// File: internal/interfaces/filesystem.go
package interfaces

import "github.com/deploymenttheory/go-shellshock/internal/types"

// FileSystem is the set of operations exposed to the command shell
type FileSystem interface {
	// Format wipes the image and writes an empty volume
	Format() error

	// Create makes a file of size bytes filled with a repeating pattern
	Create(path string, size uint64) error

	// Open returns a handle to the file at path, creating it if missing
	Open(path string, mode types.OpenMode) (int, error)

	// Close releases a handle
	Close(handle int) error

	// Read reads up to n bytes at the handle's cursor
	Read(handle int, n int) ([]byte, error)

	// Write writes data at the handle's cursor
	Write(handle int, data []byte) (int, error)

	// Lseek moves the handle's cursor to an absolute offset
	Lseek(handle int, offset int64) error

	// Link adds a second name for an existing file
	Link(src, dst string) error

	// Unlink removes a file name
	Unlink(path string) error

	// Mkdir creates an empty directory
	Mkdir(path string) error

	// Rmdir removes an empty directory
	Rmdir(path string) error

	// Cd changes the current directory
	Cd(path string) error

	// Ls lists the current directory, or path when not empty
	Ls(path string) ([]string, error)

	// Stat describes the object at path
	Stat(path string) (*types.StatT, error)

	// Cat returns the whole content of the file at path
	Cat(path string) ([]byte, error)

	// Pwd returns the absolute path of the current directory
	Pwd() string

	// Usage reports block, inode and handle usage
	Usage() (*types.UsageT, error)

	// Check verifies the on-disk structures against each other
	Check() (*types.CheckReportT, error)
}
