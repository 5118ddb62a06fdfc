package reddit

import (
	"fmt"
	"regexp"

	"reddit-newsletter/pkg/newsletter"
)

// fallbackThumbnail is shown when a post carries no usable thumbnail image.
const fallbackThumbnail = "https://user-images.githubusercontent.com/101482/29592647-40da86ca-875a-11e7-8bc3-941700b0a323.png"

// Reddit fills the thumbnail field with placeholders like "self" or
// "default" for posts without one; only direct image URLs are usable.
var thumbnailRe = regexp.MustCompile(`^(?i)https?://.+\.(jpg|gif|png)$`)

// Normalize converts raw posts for one subreddit into a validated TopicPosts.
// Upstream order is preserved and the count is re-capped at three, even
// though the upstream call already asks for at most that many.
func Normalize(topic string, raw []newsletter.RawPost) newsletter.TopicPosts {
	if len(raw) > topPostLimit {
		raw = raw[:topPostLimit]
	}

	posts := make([]newsletter.Post, 0, len(raw))
	for _, r := range raw {
		posts = append(posts, newsletter.Post{
			Ups:       r.Ups,
			Title:     r.Title,
			Thumbnail: validThumbnail(r.Thumbnail),
		})
	}

	return newsletter.TopicPosts{
		Topic: topic,
		Link:  TopicLink(topic),
		Posts: posts,
	}
}

// TopicLink returns the canonical top-posts page for a subreddit.
func TopicLink(topic string) string {
	return fmt.Sprintf("%s/r/%s/top", defaultBaseURL, topic)
}

func validThumbnail(u string) string {
	if thumbnailRe.MatchString(u) {
		return u
	}
	return fallbackThumbnail
}
