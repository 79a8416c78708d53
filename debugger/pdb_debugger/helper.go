package pdb_debugger

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/fansqz/pdb-debugger/utils"
)

//go:embed helper/jsonpdb.py
var helperSource []byte

// installHelper 将调试模块写入临时目录，返回该目录
func installHelper(module string) (string, error) {
	dir := filepath.Join(os.TempDir(), "pdb-debugger-"+utils.GetUUID())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, module+".py"), helperSource, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	logrus.Infof("[PdbDebugger] helper installed in %s", dir)
	return dir, nil
}

// pythonPath prepends dir to the inherited PYTHONPATH.
func pythonPath(dir string) string {
	if existing := os.Getenv("PYTHONPATH"); existing != "" {
		return "PYTHONPATH=" + dir + string(os.PathListSeparator) + existing
	}
	return "PYTHONPATH=" + dir
}
