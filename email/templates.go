package email

import (
	"fmt"
	"strings"

	"edforum-notifier/pkg/notifier"

	"golang.org/x/net/html"
)

const timestampLayout = "Mon 2 Jan 2006, 15:04 MST"

func notificationSubject(event *notifier.Event) string {
	return fmt.Sprintf("New forum post for %q: %s", event.Term, event.Posting.Title)
}

func formatNotificationBody(event *notifier.Event) string {
	post := event.Posting

	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background: #fff; }\n")
	b.WriteString(".post { padding-bottom: 20px; border-bottom: 2px solid #2e7d32; }\n")
	b.WriteString(".title { font-size: 1.3em; font-weight: 600; }\n")
	b.WriteString(".timestamp { color: #7f8c8d; font-size: 0.9em; }\n")
	b.WriteString(".footer { margin-top: 20px; font-size: 0.9em; color: #7f8c8d; }\n")
	b.WriteString("a { color: #2e7d32; text-decoration: none; }\n")
	b.WriteString("a:hover { text-decoration: underline; }\n")
	b.WriteString("@media (prefers-color-scheme: dark) {\n")
	b.WriteString("body { background: #1a1a1a; color: #e0e0e0; }\n")
	b.WriteString(".timestamp { color: #a0a0a0; }\n")
	b.WriteString(".footer { color: #a0a0a0; }\n")
	b.WriteString("a { color: #66bb6a; }\n")
	b.WriteString("}\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString("<div class=\"post\">\n")
	if post.Link != "" {
		b.WriteString(fmt.Sprintf("<a href=\"%s\" class=\"title\">%s</a>\n", html.EscapeString(post.Link), html.EscapeString(post.Title)))
	} else {
		// Row had no anchor; show the title without a dead link.
		b.WriteString(fmt.Sprintf("<span class=\"title\">%s</span>\n", html.EscapeString(post.Title)))
	}
	if !post.PostedAt.IsZero() {
		b.WriteString(fmt.Sprintf("<div class=\"timestamp\">Posted %s</div>\n", html.EscapeString(post.PostedAt.Format(timestampLayout))))
	}
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"footer\">\n")
	b.WriteString(fmt.Sprintf("Matched search term <strong>%s</strong>\n", html.EscapeString(event.Term)))
	if post.Link != "" {
		b.WriteString(fmt.Sprintf("<br>%s\n", html.EscapeString(post.Link)))
	}
	b.WriteString("</div>\n")

	b.WriteString("</body>\n</html>")

	return b.String()
}
