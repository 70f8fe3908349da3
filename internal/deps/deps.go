package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Status reports whether an external binary can be executed.
type Status struct {
	Name        string
	Command     string
	Description string
	Available   bool
	Detail      string
}

// Resolve locates configured, falling back to fallback when it is blank.
// Values containing a path separator must name an executable file; bare
// names are looked up on PATH and Command is set to the resolved path.
func Resolve(name, description, configured, fallback string) Status {
	binary := strings.TrimSpace(configured)
	if binary == "" {
		binary = fallback
	}
	result := Status{Name: name, Command: binary, Description: description}
	if binary == "" {
		result.Detail = "command not configured"
		return result
	}

	if strings.ContainsRune(binary, filepath.Separator) {
		info, err := os.Stat(binary)
		switch {
		case err != nil:
			result.Detail = fmt.Sprintf("binary %q not found", binary)
		case !isExecutable(info):
			result.Detail = fmt.Sprintf("binary %q is not executable", binary)
		default:
			result.Available = true
		}
		return result
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	result.Command = resolved
	result.Available = true
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
