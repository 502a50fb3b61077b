package cmd

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const currentScriptVersion = 1

// simulationScript is a recorded editing session: a document plus the
// ordered steps each editor took. Content, when set, overrides whatever the
// document store holds as initial content.
type simulationScript struct {
	Version  int              `toml:"version"`
	Document string           `toml:"document"`
	Content  *string          `toml:"content"`
	Steps    []simulationStep `toml:"steps"`
}

type simulationStep struct {
	Action    string           `toml:"action"`
	User      string           `toml:"user"`
	Name      string           `toml:"name,omitempty"`
	Position  int              `toml:"position,omitempty"`
	Content   string           `toml:"content,omitempty"`
	Length    int              `toml:"length,omitempty"`
	Selection *selectionSchema `toml:"selection,omitempty"`
}

type selectionSchema struct {
	Start int `toml:"start"`
	End   int `toml:"end"`
}

const (
	actionJoin    = "join"
	actionLeave   = "leave"
	actionCursor  = "cursor"
	actionInsert  = "insert"
	actionDelete  = "delete"
	actionReplace = "replace"
	actionSync    = "sync"
)

func loadScript(path string) (simulationScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return simulationScript{}, fmt.Errorf("read script file: %w", err)
	}

	var script simulationScript
	if err := toml.Unmarshal(data, &script); err != nil {
		return simulationScript{}, fmt.Errorf("decode script file: %w", err)
	}

	if script.Version == 0 {
		script.Version = currentScriptVersion
	}
	if script.Version > currentScriptVersion {
		return simulationScript{}, fmt.Errorf("unsupported script version %d (current %d)", script.Version, currentScriptVersion)
	}
	if strings.TrimSpace(script.Document) == "" {
		return simulationScript{}, fmt.Errorf("script document is required")
	}

	for i, step := range script.Steps {
		if strings.TrimSpace(step.User) == "" {
			return simulationScript{}, fmt.Errorf("step %d: user is required", i+1)
		}
		switch step.Action {
		case actionJoin, actionLeave, actionCursor, actionInsert, actionDelete, actionReplace, actionSync:
		default:
			return simulationScript{}, fmt.Errorf("step %d: unknown action %q", i+1, step.Action)
		}
	}

	return script, nil
}
