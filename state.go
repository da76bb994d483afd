package drift

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// State is the CLI state persisted between invocations: the cached access
// token and the currently selected project. It replaces ambient file-backed
// globals with an explicit load/save contract; commands receive a State and
// save it back when they change it.
type State struct {
	AccessToken     string `json:"access_token,omitempty"`
	SelectedProject string `json:"selected_project,omitempty"`

	path string
}

// DefaultStatePath returns the state file location under the XDG config
// directory, creating parent directories as needed.
func DefaultStatePath() (string, error) {
	return xdg.ConfigFile("drift/state.json")
}

// LoadState reads the persisted state at path. A missing file yields an
// empty state bound to the same path, so the first Save creates it.
func LoadState(path string) (*State, error) {
	s := &State{path: path}

	raw, err := os.ReadFile(path)

	if os.IsNotExist(err) {
		return s, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}

	return s, nil
}

// Save writes the state back to the file it was loaded from. The token is
// user-private, so the file is not group or world readable.
func (s *State) Save() error {
	raw, err := json.MarshalIndent(s, "", "  ")

	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}

	return nil
}
