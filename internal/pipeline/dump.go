package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"veilleur/internal/logger"
)

// dump writes a per-stage JSON artifact when a dump directory is
// configured. Dump failures never abort a run.
func (p *Pipeline) dump(kind string, v any) {
	if p.dumpDir == "" {
		return
	}

	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Warn("failed to marshal stage dump", "kind", kind, "error", err.Error())
		return
	}

	if err := os.MkdirAll(p.dumpDir, 0755); err != nil {
		logger.Warn("failed to create dump directory", "dir", p.dumpDir, "error", err.Error())
		return
	}

	name := fmt.Sprintf("%s_%s.json", kind, p.now().Format("20060102_150405"))
	path := filepath.Join(p.dumpDir, name)
	if err := os.WriteFile(path, payload, 0644); err != nil {
		logger.Warn("failed to write stage dump", "path", path, "error", err.Error())
		return
	}
	logger.Debug("stage dump written", "path", path)
}
