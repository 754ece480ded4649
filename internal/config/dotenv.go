package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnvFiles applies each path's key/value pairs to the process
// environment, skipping any key already set to a non-blank value (a key
// set to an empty or whitespace-only value is overwritten), matching the precedence
// godotenv.Read documents and the teacher's own dotenv layering (a
// missing file is not an error).
func loadDotEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := loadDotEnvFile(path); err != nil {
			return err
		}
	}
	return nil
}

func loadDotEnvFile(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for key, value := range values {
		if existing, ok := os.LookupEnv(key); ok && strings.TrimSpace(existing) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}
