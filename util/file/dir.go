package file

import (
	"cheapisdakv/util/log"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureDir makes sure dir exists, creating it if necessary. If clean
// is true, it also makes sure dir is empty.
func EnsureDir(dir string, clean bool) error {
	// Check whether the path exists.
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		// Doesn't exist yet; create it.
		err = os.MkdirAll(dir, 0755) // 0755 is the directory permission.
		if err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		log.FnLog("Directory created: %s", dir)
	} else if err != nil {
		// Some other stat error.
		return fmt.Errorf("failed to stat directory: %w", err)
	} else if !info.IsDir() {
		// Exists, but isn't a directory.
		return fmt.Errorf("path exists but is not a directory: %s", dir)
	}

	// The path exists and is a directory.
	log.FnLog("Directory already exists: %s, need clean: %t", dir, clean)
	if clean {
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if path == dir {
				return nil
			}

			if err != nil {
				log.FnErrLog("encounter a error when walking file(%s): %s", path, err.Error())
				return err
			}

			if d.IsDir() {
				err = os.RemoveAll(path)
				if err != nil {
					log.FnErrLog("remove all of dir(%s) failed: %s", path, err.Error())
				}
				return err
			}

			err = os.Remove(path)
			if err != nil {
				log.FnErrLog("remove file(%s) failed: %s", path, err.Error())
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("walk dir error: %s", err.Error())
		}
	}

	return nil
}
