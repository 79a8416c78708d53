package utils

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePath 将文件路径转换为统一的形式，作为断点的key
// 绝对路径，解析软链接，windows下转为小写
func NormalizePath(file string) string {
	if file == "" {
		return ""
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = filepath.Clean(file)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if runtime.GOOS == "windows" {
		abs = strings.ToLower(abs)
	}
	return abs
}
