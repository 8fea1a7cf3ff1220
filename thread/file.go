package thread

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hupe1980/agentrelay/core"
)

// FileCallbacks returns a load/save pair realizing the persistence callback
// contract over a single JSON file. It is intended for demos and tests;
// durable backends live behind the same contract outside this module.
func FileCallbacks(path string) (LoadFunc, SaveFunc) {
	load := func() []core.Message {
		data, err := os.ReadFile(path)
		if err != nil {
			// A missing file is an empty history, not an error.
			return nil
		}
		var messages []core.Message
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil
		}
		return messages
	}

	save := func(messages []core.Message) error {
		if messages == nil {
			messages = []core.Message{}
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil && !errors.Is(err, fs.ErrExist) {
				return err
			}
		}
		data, err := json.MarshalIndent(messages, "", "  ")
		if err != nil {
			return err
		}
		// 0600: threads contain conversation history.
		return os.WriteFile(path, data, 0o600)
	}

	return load, save
}
