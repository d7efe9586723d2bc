package version

import (
	"fmt"
	"runtime"
)

// Заполняются при сборке через -ldflags:
//
//	-X github.com/skooli/storefront/internal/version.version=v1.0.0
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// BuildInfo описывает сборку сервиса
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Info возвращает информацию о сборке
func Info() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
	}
}

// String возвращает информацию о сборке одной строкой для логов
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
