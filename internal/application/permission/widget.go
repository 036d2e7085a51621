package permission

import (
	"fmt"
	"strings"

	"github.com/doeshing/sentry-go/internal/domain"
)

var levelSummaries = map[domain.PermissionLevel]string{
	domain.PermissionLow:    "allow edits + read-only commands",
	domain.PermissionMedium: "allow reversible commands",
	domain.PermissionHigh:   "allow all commands",
	domain.PermissionYOLO:   "bypass all commands",
}

var levelBadges = map[domain.PermissionLevel]string{
	domain.PermissionLow:    "Low",
	domain.PermissionMedium: "Med",
	domain.PermissionHigh:   "High",
	domain.PermissionYOLO:   "YOLO",
}

// Options shown by the approval prompt.
const (
	OptionAllow  = "Yes, allow"
	OptionCancel = "No, Cancel"
)

// WidgetLabel is the status line text for a level.
func WidgetLabel(level domain.PermissionLevel) string {
	badge, ok := levelBadges[level]
	if !ok {
		badge = level.Upper()
	}
	return fmt.Sprintf("Perm (%s) - %s", badge, levelSummaries[level])
}

// WidgetText is the label followed by the cycle hint when a shortcut is set.
func WidgetText(level domain.PermissionLevel, shortcut string) string {
	label := WidgetLabel(level)
	if strings.TrimSpace(shortcut) == "" {
		return label
	}
	return label + fmt.Sprintf(" (%s to cycle)", shortcut)
}

// FitWidth fits a widget text into width columns: the cycle hint is
// dropped first, then the label is truncated. A non-positive width disables
// fitting.
func FitWidth(text string, width int) string {
	if width <= 0 || len([]rune(text)) <= width {
		return text
	}
	if i := strings.LastIndex(text, " ("); i > 0 && strings.HasSuffix(text, " to cycle)") {
		text = text[:i]
		if len([]rune(text)) <= width {
			return text
		}
	}
	runes := []rune(text)
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// LevelOption is the selector entry for a level.
func LevelOption(level domain.PermissionLevel) string {
	return fmt.Sprintf("%s: %s", level, levelSummaries[level])
}

// ApprovalTitle is the title of the approval prompt.
func ApprovalTitle(assessment domain.Assessment) string {
	var b strings.Builder
	b.WriteString("EXECUTE (")
	b.WriteString(assessment.Operation)
	b.WriteString(", impact: ")
	b.WriteString(assessment.ImpactLabel())
	if assessment.Reason != "" {
		b.WriteString(", reason: ")
		b.WriteString(assessment.Reason)
	}
	b.WriteString(")")
	return b.String()
}
