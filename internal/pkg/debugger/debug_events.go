package debugger

import (
	"bytes"
	"encoding/json"

	"go.uber.org/zap"
)

// DebugPrintFrame logs a raw session frame for debugging. Only wired in
// non-production environments; frames may contain user queries.
func DebugPrintFrame(logger *zap.SugaredLogger, direction string, frame []byte) {
	logger.Infow("Session frame", "direction", direction, "frame", string(frame))

	// Pretty-print when the frame is JSON
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, frame, "", "  "); err == nil {
		logger.Infow("Session frame (pretty)", "direction", direction, "frame", prettyJSON.String())
	}
}
