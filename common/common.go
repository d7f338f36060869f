package common

import (
	"io/fs"
	"os"
	"path/filepath"
)

const (
	AppName    = "xmbuild"
	TmpDirBase = "/tmp/"
)

// GetTmpDir returns the scratch directory honouring TMPDIR.
func GetTmpDir() string {
	base := os.Getenv("TMPDIR")
	if base == "" {
		base = TmpDirBase
	}
	return filepath.Join(base, AppName) + "/"
}

// Structured log field keys.
const (
	RunID         = "RunID"
	EasyblockName = "Easyblock"
	StepName      = "Step"
	StrategyName  = "Strategy"
	CommandField  = "Command"
)

const (
	// FileMode0755 represents rwxr-xr-x
	FileMode0755 fs.FileMode = 0755
	// FileMode0644 represents rw-r--r--
	FileMode0644 fs.FileMode = 0644
)

// Environment variable prefixes used to publish installed software.
const (
	EnvRootPrefix    = "EBROOT"
	EnvVersionPrefix = "EBVERSION"
)

// Directory names used inside a build tree.
const (
	SeparateBuildDirName = "easybuild_obj"
	BackupSuffix         = ".orig.eb"
)

// OperationState is the outcome of a unit of work.
type OperationState int

const (
	StatePending OperationState = iota // 0
	StateRunning                       // 1
	StateSuccess                       // 2
	StateFailed                        // 3
	StateSkipped                       // 4
)

func (s OperationState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateRunning:
		return "Running"
	case StateSuccess:
		return "Success"
	case StateFailed:
		return "Failed"
	case StateSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}
