// Package permission computes the unified diff an Edit or Write call
// attaches to its confirmation prompt (spec §4.6 Stage C's preview), via
// the teacher's gotextdiff-based approach.
package permission

import (
	"fmt"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// UnifiedDiff returns the unified diff between oldContent and newContent
// for filePath, ready to drop into a message.ConfirmationDetails.Diff.
func UnifiedDiff(filePath, oldContent, newContent string) string {
	edits := myers.ComputeEdits(span.URIFromPath(filePath), oldContent, newContent)
	unified := gotextdiff.ToUnified(filePath, filePath, oldContent, edits)
	return fmt.Sprint(unified)
}
