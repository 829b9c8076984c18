package loaders

import (
	"fmt"
	"os"

	"github.com/oxygen3d/oxygen/engine/core"
)

// LoadBinary reads a raw asset file in one go.
func LoadBinary(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("func LoadBinary - '%s': %w", path, core.ErrNotFound)
		}
		return nil, fmt.Errorf("func LoadBinary - cannot read '%s': %w", path, err)
	}
	return data, nil
}
