package email

import (
	"fmt"
	"strconv"
	"strings"

	"reddit-newsletter/pkg/newsletter"
)

// RenderDigest renders the HTML body for one user's digest. Rendering is
// pure: same digest in, same markup out.
func RenderDigest(d newsletter.Digest) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("</head>\n<body>\n<div>\n")

	writeHeader(&b, d)

	b.WriteString("<div style=\"display: flex; justify-content: center; align-items: center; width: 80%;\">\n<div>\n")
	for _, tp := range d.Topics {
		writeTopic(&b, tp)
	}
	b.WriteString("</div>\n</div>\n")

	b.WriteString("</div>\n</body>\n</html>")

	return b.String()
}

func writeHeader(b *strings.Builder, d newsletter.Digest) {
	b.WriteString("<div style=\"font-size: 50pt; color: #535353; text-align: center; padding-bottom: 120px; font-weight: 800;\">\n")
	b.WriteString("Reddit Newsletter\n")
	b.WriteString("</div>\n")

	greeting := d.User.FirstName
	if d.User.LastName != "" {
		greeting += " " + d.User.LastName
	}

	noun := "channels"
	if len(d.Topics) == 1 {
		noun = "channel"
	}

	b.WriteString("<div style=\"font-size: 20pt; font-weight: 100;\">\n")
	b.WriteString(fmt.Sprintf("<div class=\"greeting\">Hello %s,</div>\n", escapeHTML(greeting)))
	b.WriteString(fmt.Sprintf("<div class=\"tagline\">See yesterday&#39;s top voted posts from your favorite %s</div>\n", noun))
	b.WriteString("</div>\n")
}

func writeTopic(b *strings.Builder, tp newsletter.TopicPosts) {
	b.WriteString("<div class=\"channel-item\">\n")
	b.WriteString("<div style=\"border: 2px solid black; color: #535353; padding: 5px;\">\n")
	b.WriteString(fmt.Sprintf("<span class=\"channel-name\" style=\"font-size: 25pt; font-weight: 800; text-transform: capitalize;\">%s:</span>\n", escapeHTML(tp.Topic)))
	b.WriteString(fmt.Sprintf("<a class=\"channel-link\" style=\"font-size: 18pt; font-weight: 600;\" href=\"%s\">%s</a>\n", escapeHTML(tp.Link), escapeHTML(tp.Link)))
	b.WriteString("</div>\n<div>\n")

	for _, post := range tp.Posts {
		writePost(b, post)
	}

	b.WriteString("</div>\n</div>\n")
}

func writePost(b *strings.Builder, post newsletter.Post) {
	b.WriteString("<div class=\"channel-post\" style=\"padding-bottom: 50px;\">\n")
	b.WriteString(fmt.Sprintf("<img src=\"%s\" alt=\"%s\" style=\"width: 95%%; height: 500px;\">\n",
		escapeHTML(post.Thumbnail), escapeHTML(post.Title)))
	b.WriteString("<div style=\"display: inline-flex; width: 90%; min-height: 100px;\">\n")
	b.WriteString(fmt.Sprintf("<div class=\"post-score\" style=\"color: white; background-color: orange; font-size: 30px; font-weight: 900; border-radius: 50%%; min-width: 100px; height: 100px; text-align: center; line-height: 100px;\">%s</div>\n",
		FormatScore(post.Ups)))
	b.WriteString(fmt.Sprintf("<div class=\"post-title\" style=\"font-size: 24px; text-align: center;\">%s</div>\n", escapeHTML(post.Title)))
	b.WriteString("</div>\n</div>\n")
}

// FormatScore renders an upvote count for display. Counts of 1000 and above
// collapse to the nearest thousand with a K suffix, rounding half up, so
// 1500 shows as "2K" and 2499 as "2K".
func FormatScore(ups int) string {
	if ups < 1000 {
		return strconv.Itoa(ups)
	}
	return strconv.Itoa((ups+500)/1000) + "K"
}

// escapeHTML escapes HTML special characters for security.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}
