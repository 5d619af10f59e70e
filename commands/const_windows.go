package commands

import (
	"path/filepath"

	"golang.org/x/sys/windows"
)

var (
	DEFAULT_WORKDIR     = workdir()
	DEFAULT_CONFIG      = filepath.Join(workdir(), "iter8.yaml")
	DEFAULT_CREDENTIALS = filepath.Join(workdir(), ".google", "credentials.json")
)

func workdir() string {
	programData, err := windows.KnownFolderPath(windows.FOLDERID_ProgramData, windows.KF_FLAG_DEFAULT)
	if err != nil {
		return `C:\iter8`
	}

	return filepath.Join(programData, "iter8")
}
