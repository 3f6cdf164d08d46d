// internal/nodeid/parser.go
package nodeid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vk/stagegrid/internal/entity"
)

// stageRegex restricts stage names to identifier-like tokens.
var stageRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidStage reports whether name can be used as the stage part of an address.
func ValidStage(name string) bool {
	return stageRegex.MatchString(name)
}

// Parse creates a new Address by parsing its canonical string representation.
func Parse(rawID string) (Address, error) {
	if rawID == "" {
		return Address{}, fmt.Errorf("identifier cannot be empty")
	}

	entityPart, stagePart, ok := strings.Cut(rawID, ".")
	if !ok {
		return Address{}, fmt.Errorf("identifier %q is missing a stage segment", rawID)
	}

	id, err := entity.ParseID(entityPart)
	if err != nil {
		return Address{}, err
	}
	if !ValidStage(stagePart) {
		return Address{}, fmt.Errorf("invalid stage name: %q", stagePart)
	}

	return Address{Entity: id, Stage: stagePart}, nil
}
