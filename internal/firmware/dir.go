package firmware

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultDirectory is the fixed fallback directory, relative to the
// working directory of the process.
const DefaultDirectory = "public/firmware"

// envToken matches a leading Windows-style %NAME% reference.
var envToken = regexp.MustCompile(`^%(\w+)%`)

// Env is the slice of process environment the locator depends on.
type Env struct {
	LookupEnv func(key string) (string, bool)
	HomeDir   func() (string, error)
	Getwd     func() (string, error)
}

// OSEnv returns an Env backed by the running process.
func OSEnv() Env {
	return Env{
		LookupEnv: os.LookupEnv,
		HomeDir:   os.UserHomeDir,
		Getwd:     os.Getwd,
	}
}

// ExpandDirectory applies home and environment expansion to a raw
// directory value:
//
//   - "~rest"    becomes <home>/rest
//   - "%NAME%rest" becomes <value of NAME>rest when NAME is bound to a
//     non-empty value, and is returned unchanged otherwise
//
// Any other value is returned as is. Expansion never fails.
func ExpandDirectory(raw string, env Env) string {
	if strings.HasPrefix(raw, "~") {
		if env.HomeDir == nil {
			return raw
		}
		home, err := env.HomeDir()
		if err != nil || home == "" {
			return raw
		}
		return filepath.Join(home, raw[1:])
	}

	if m := envToken.FindStringSubmatch(raw); m != nil {
		if env.LookupEnv == nil {
			return raw
		}
		if v, ok := env.LookupEnv(m[1]); ok && v != "" {
			return v + raw[len(m[0]):]
		}
	}

	return raw
}

// ResolveDirectory expands raw, falls back to DefaultDirectory when raw is
// empty, then cleans the result and makes it absolute against the working
// directory.
func ResolveDirectory(raw string, env Env) string {
	dir := ExpandDirectory(raw, env)
	if dir == "" {
		dir = filepath.FromSlash(DefaultDirectory)
	}
	return absolute(dir, env)
}

func absolute(dir string, env Env) string {
	dir = filepath.Clean(dir)
	if filepath.IsAbs(dir) || env.Getwd == nil {
		return dir
	}
	wd, err := env.Getwd()
	if err != nil {
		return dir
	}
	return filepath.Join(wd, dir)
}
