// Пакет version хранит сведения о сборке shopcore, заполняемые через -ldflags.
package version

import "fmt"

const serviceName = "shopcore"

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Service возвращает имя сервиса для health-ответов и логов.
func Service() string { return serviceName }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// Commit возвращает хеш коммита сборки.
func Commit() string { return commit }

// BuildDate возвращает дату сборки.
func BuildDate() string { return buildDate }

// String собирает строку для стартового лога.
func String() string {
	return fmt.Sprintf("%s version=%s commit=%s date=%s", serviceName, version, commit, buildDate)
}
