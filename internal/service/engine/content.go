package engine

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// endedStateTTL bounds how long a push service may retry delivery of a
// notification about an already-finished event.
const endedStateTTL = 3600

// Content is the user-visible part of a notification.
type Content struct {
	Title     string
	Message   string
	DirectURL string
	Image     string
	TTL       int
}

var titleCaser = cases.Title(language.English)

// prettify turns snake_case identifiers into display text.
func prettify(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

func prettifyAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, prettify(name))
	}
	return out
}

// alertLabels merges object labels with sub labels, dropping verification
// markers and duplicates.
func alertLabels(ev ReviewEvent) []string {
	seen := make(map[string]struct{}, len(ev.Objects)+len(ev.SubLabels))
	labels := make([]string, 0, len(ev.Objects)+len(ev.SubLabels))
	for _, label := range ev.Objects {
		if strings.Contains(label, "-verified") {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	for _, label := range ev.SubLabels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels
}

// alertContent builds the push content for a review alert.
func alertContent(ev ReviewEvent, friendlyName string) Content {
	subject := strings.Join(prettifyAll(alertLabels(ev)), ", ")
	if subject == "" {
		subject = "Activity"
	}

	verb := "detected"
	if ev.State == ReviewStateEnd {
		verb = "was detected"
	}

	title := fmt.Sprintf("%s %s", subject, verb)
	if len(ev.Zones) > 0 {
		title = fmt.Sprintf("%s in %s", title, strings.Join(prettifyAll(ev.Zones), ", "))
	}

	camera := friendlyName
	if camera == "" {
		camera = prettify(ev.Camera)
	}

	content := Content{
		Title:   title,
		Message: fmt.Sprintf("Detected on %s", camera),
		Image:   ev.ThumbPath,
	}
	// Ongoing events open the live view; finished events open the recording.
	if ev.State == ReviewStateEnd {
		content.DirectURL = fmt.Sprintf("/review?id=%s", ev.ReviewID)
		content.TTL = endedStateTTL
	} else {
		content.DirectURL = "/#" + ev.Camera
	}
	return content
}

// triggerContent builds the push content for a semantic trigger firing.
func triggerContent(ev TriggerEvent, friendlyName string) Content {
	camera := friendlyName
	if camera == "" {
		camera = prettify(ev.Camera)
	}

	return Content{
		Title:     fmt.Sprintf("%s triggered", prettify(ev.Name)),
		Message:   fmt.Sprintf("%s trigger fired on %s (score %.0f%%)", prettify(ev.Type), camera, ev.Score*100),
		DirectURL: fmt.Sprintf("/explore?event_id=%s", ev.EventID),
	}
}

func testContent() Content {
	return Content{
		Title:   "Test Notification",
		Message: "This is a test notification from your monitoring system",
	}
}
