package version

import "fmt"

const (
	Version = "v0.1.0"

	colorReset    = "\033[0m"
	colorCyanBold = "\033[36;1m"
)

// bannerTpl returns the colored banner of the sqlitetrack programs.
func bannerTpl() string {
	banner := `
              __ _ __       __                  __
   _________ _/ /(_) /____  / /__________ ______/ /__
  / ___/ __ ` + "`" + `/ // / __/ _ \/ __/ ___/ __ ` + "`" + `/ ___/ //_/
 (__  ) /_/ / // / /_/  __/ /_/ /  / /_/ / /__/ ,<
/____/\__, /_//_/\__/\___/\__/_/   \__,_/\___/_/|_|
        /_/
%s ` + Version + ` on SQLite %s`

	banner = banner[1:]
	return colorCyanBold + banner + colorReset
}

// ShellVersion returns the banner of the sqlitetrack shell.
func ShellVersion(sqliteVersion string) string {
	return fmt.Sprintf(bannerTpl(), "Shell", sqliteVersion)
}

// BenchVersion returns the banner of the sqlitetrack benchmark.
func BenchVersion(sqliteVersion string) string {
	return fmt.Sprintf(bannerTpl(), "Benchmark", sqliteVersion)
}
