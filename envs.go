package drift

import (
	"fmt"
	"os"
	"strings"

	"github.com/subosito/gotenv"
)

// ParseEnvPairs converts KEY=VALUE strings, as collected from repeated --env
// flags, into a secrets map.
func ParseEnvPairs(pairs []string) (map[string]string, error) {
	envs := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")

		if !found || key == "" {
			return nil, fmt.Errorf("invalid env pair %q, expected KEY=VALUE", pair)
		}

		envs[key] = value
	}

	return envs, nil
}

// ReadEnvFile parses a dotenv file into a secrets map.
func ReadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("opening env file: %w", err)
	}

	defer f.Close()

	envs, err := gotenv.StrictParse(f)

	if err != nil {
		return nil, fmt.Errorf("parsing env file %s: %w", path, err)
	}

	return envs, nil
}
