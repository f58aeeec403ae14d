package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/printops/prnvault/internal/stage"
)

// requireStage resolves the stage for a request, preferring the value the
// JSON body carried and falling back to query or form parameters. An invalid
// or missing stage responds 400 and reports false.
func requireStage(c *gin.Context, bodyStage string) (stage.Stage, bool) {
	raw := bodyStage
	if raw == "" {
		raw = c.Query("stage")
	}
	if raw == "" {
		raw = c.PostForm("stage")
	}
	st, ok := stage.Normalize(raw)
	if !ok {
		RespondError(c, 400, "invalid_stage", errInvalidStage)
		return "", false
	}
	return st, true
}

// requireStageParam normalizes a stage taken from the URL path.
func requireStageParam(c *gin.Context, raw string) (stage.Stage, bool) {
	st, ok := stage.Normalize(raw)
	if !ok {
		RespondError(c, 400, "invalid_stage", errInvalidStage)
		return "", false
	}
	return st, true
}
