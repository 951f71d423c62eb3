package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/strata/internal/compiler"
	"github.com/roach88/strata/internal/schema"
)

// LoadError is a schema-loading failure with a CLI error code.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadSchemas compiles every CUE schema definition at path, which may be a
// single .cue file or a directory searched non-recursively. Files load in
// sorted name order so repeated runs see identical schema sets.
func LoadSchemas(path string) ([]*schema.Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoad, Message: fmt.Sprintf("schema path not found: %s", path), Err: err}
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoad, Message: fmt.Sprintf("failed to read schema directory: %s", path), Err: err}
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".cue") {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(files)
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeLoad, Message: fmt.Sprintf("no .cue files found in %s", path)}
		}
	} else {
		files = []string{path}
	}

	cueCtx := cuecontext.New()
	var schemas []*schema.Schema
	seen := map[string]string{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoad, Message: fmt.Sprintf("failed to read %s", file), Err: err}
		}
		v := cueCtx.CompileBytes(data, cue.Filename(file))
		compiled, err := compiler.CompileAll(v)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeCompile, Message: fmt.Sprintf("failed to compile %s", file), Err: err}
		}
		for _, sc := range compiled {
			if prior, dup := seen[sc.Name]; dup {
				return nil, &LoadError{
					Code:    ErrCodeCompile,
					Message: fmt.Sprintf("schema %q defined in both %s and %s", sc.Name, prior, file),
				}
			}
			seen[sc.Name] = file
			schemas = append(schemas, sc)
		}
	}
	return schemas, nil
}
