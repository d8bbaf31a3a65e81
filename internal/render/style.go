package render

import (
	"strings"

	"github.com/jlucaspains/roadmapboard/internal/models"
)

// Color names a badge palette entry in the dashboard stylesheet
type Color string

const (
	Blue   Color = "blue"
	Yellow Color = "yellow"
	Green  Color = "green"
	Gray   Color = "gray"
	Red    Color = "red"
	Orange Color = "orange"
)

var statusColors = map[string]Color{
	"new":         Blue,
	"open":        Blue,
	"in progress": Yellow,
	"assigned":    Yellow,
	"resolved":    Green,
	"feedback":    Green,
	"closed":      Gray,
	"rejected":    Red,
}

var priorityColors = map[string]Color{
	"immediate": Red,
	"urgent":    Red,
	"high":      Orange,
	"normal":    Blue,
	"low":       Gray,
}

// StatusColor maps an issue status name to its badge color. Unknown statuses are gray.
func StatusColor(name string) Color {
	if c, ok := statusColors[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return Gray
}

// PriorityColor maps an issue priority name to its badge color. Unknown priorities are gray.
func PriorityColor(name string) Color {
	if c, ok := priorityColors[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return Gray
}

// VersionStatusColor maps a version status to its badge color
func VersionStatusColor(status models.VersionStatus) Color {
	switch status {
	case models.VersionOpen:
		return Green
	case models.VersionClosed:
		return Gray
	default:
		return Blue
	}
}

// ProgressWidth is the progress bar width in percent
func ProgressWidth(doneRatio int) int {
	return models.ClampPercent(doneRatio)
}
