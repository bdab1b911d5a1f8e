package initializer

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnvVariables loads the first .env file found among paths into the
// process environment. Missing files are not an error, variables that are
// already set win over the file.
func LoadEnvVariables(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = []string{".env", "../../.env"}
	}
	for _, path := range paths {
		err := godotenv.Load(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return "", nil
}
