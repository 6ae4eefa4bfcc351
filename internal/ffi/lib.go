// Package ffi provides FFI bindings to the libdatachannel C API.
// It supports both purego (default) and CGO dlopen backends via build tags.
package ffi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

var (
	// ErrLibraryNotLoaded is returned when libdatachannel hasn't been loaded.
	ErrLibraryNotLoaded = errors.New("libdatachannel not loaded")

	// ErrLibraryNotFound is returned when libdatachannel cannot be found.
	ErrLibraryNotFound = errors.New("libdatachannel not found")

	// ErrSymbolNotFound is returned when a required symbol is missing.
	ErrSymbolNotFound = errors.New("libdatachannel symbol not found")

	// ErrNotSupported is returned when an optional symbol is missing from
	// the loaded build, e.g. media functions in a data-channel-only build.
	ErrNotSupported = errors.New("not supported by loaded libdatachannel")
)

// LibraryPathEnv overrides the library search.
const LibraryPathEnv = "LIBDATACHANNEL_PATH"

var (
	libHandle uintptr
	libLoaded atomic.Bool // Use atomic for lock-free reads
	libMu     sync.Mutex  // Still used for load/unload operations
)

// LoadLibrary loads the libdatachannel shared library.
// It searches in the following locations:
// 1. Path specified by LIBDATACHANNEL_PATH environment variable
// 2. ./lib/{os}_{arch}/ (executable, working directory and module relative)
// 3. System library paths
func LoadLibrary() error {
	libMu.Lock()
	defer libMu.Unlock()

	if libLoaded.Load() {
		return nil
	}

	libPath := getLibraryName()
	if local, ok := findLocalLibrary(); ok {
		libPath = local
	}

	handle, err := dlopenLibrary(libPath, RTLD_NOW|RTLD_GLOBAL)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, libPath, err)
	}

	libHandle = handle
	if err := registerFunctions(); err != nil {
		_ = dlcloseLibrary(handle)
		libHandle = 0
		return err
	}

	log.Debug().Str("module", "ffi").Str("path", libPath).Msg("libdatachannel loaded")
	libLoaded.Store(true)
	return nil
}

// MustLoadLibrary loads the library and panics on failure.
func MustLoadLibrary() {
	if err := LoadLibrary(); err != nil {
		panic(fmt.Sprintf("libgodatachannel: %v", err))
	}
}

// IsLoaded returns true if libdatachannel is loaded.
func IsLoaded() bool {
	return libLoaded.Load()
}

// Close unloads libdatachannel. Callers must have deleted every object and
// called Cleanup first.
func Close() error {
	libMu.Lock()
	defer libMu.Unlock()

	if !libLoaded.Load() {
		return nil
	}

	if err := dlcloseLibrary(libHandle); err != nil {
		return err
	}

	resetFunctions()
	libLoaded.Store(false)
	libHandle = 0
	return nil
}

func findLocalLibrary() (string, bool) {
	if path := os.Getenv(LibraryPathEnv); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}

	libName := getLibraryName()
	platformDir := fmt.Sprintf("%s_%s", runtime.GOOS, runtime.GOARCH)

	var searchPaths []string

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		searchPaths = append(searchPaths, filepath.Join(execDir, "lib", platformDir, libName))
	}

	if wd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(wd, "lib", platformDir, libName),
			filepath.Join(wd, "..", "lib", platformDir, libName),
			filepath.Join(wd, "..", "..", "lib", platformDir, libName),
		)
	}

	// thisFile is .../internal/ffi/lib.go, go up to module root
	if _, thisFile, _, ok := runtime.Caller(0); ok {
		moduleRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
		searchPaths = append(searchPaths, filepath.Join(moduleRoot, "lib", platformDir, libName))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			absPath, _ := filepath.Abs(path)
			return absPath, true
		}
	}

	return "", false
}

func getLibraryName() string {
	return getLibraryNameFor(runtime.GOOS)
}

func getLibraryNameFor(goos string) string {
	switch goos {
	case "darwin":
		return "libdatachannel.dylib"
	case "windows":
		return "datachannel.dll"
	default:
		return "libdatachannel.so"
	}
}
