// pkg/env/doc.go
package env

/*
Package env locates system libraries and headers for packages that are
provided by the host rather than built by mopack.

It handles:
  - Describing the standard library, include and pkg-config directories of
    each platform
  - Finding a library by name, including versioned shared objects
  - Finding the include directory that provides a header

Basic Usage:

    import "github.com/arc-language/mopack/pkg/env"

    e := env.New(afero.NewOsFs(), "linux")

    if lib := e.FindLibrary("z"); lib != nil {
        fmt.Println(lib.Path)
    }

    if dir, ok := e.FindHeader("zlib.h"); ok {
        fmt.Println(dir)
    }
*/
