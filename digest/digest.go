// Package digest assembles per-user digests from fetched topic results.
package digest

import "reddit-newsletter/pkg/newsletter"

// Aggregate pairs a user with their non-empty topic results. Topics that
// returned no posts are excluded; the remaining order is preserved. The
// result may legitimately be empty when every topic came back bare.
func Aggregate(user newsletter.User, topics []newsletter.TopicPosts) newsletter.Digest {
	kept := make([]newsletter.TopicPosts, 0, len(topics))
	for _, tp := range topics {
		if len(tp.Posts) == 0 {
			continue
		}
		kept = append(kept, tp)
	}

	return newsletter.Digest{User: user, Topics: kept}
}
