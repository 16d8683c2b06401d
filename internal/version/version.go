package version

import "fmt"

// Заполняются при сборке через -ldflags:
//
//	-X github.com/vladislavdragonenkov/orders/internal/version.version=v1.2.3
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
