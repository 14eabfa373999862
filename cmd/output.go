package cmd

import (
	"fmt"
	"io"

	"github.com/lepinkainen/bibsync/internal/fileutil"
)

// printValue writes v to w as YAML or JSON.
func printValue(w io.Writer, v any, format string) error {
	f, err := fileutil.ParseFormat(format)
	if err != nil {
		return err
	}
	data, err := fileutil.Marshal(v, f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// writeOrPrint writes v to path when given, otherwise prints it.
func writeOrPrint(v any, format, path string, overwrite bool) error {
	if path == "" {
		return printValue(stdout, v, format)
	}
	f, err := fileutil.ParseFormat(format)
	if err != nil {
		return err
	}
	written, err := fileutil.WriteFile(v, path, f, overwrite)
	if err != nil {
		return err
	}
	if !written {
		return fmt.Errorf("output file %s already exists, use --overwrite to replace it", path)
	}
	return nil
}
