// Package newsletter contains the core domain types for the subreddit digest service.
package newsletter

// User is a newsletter recipient with the channels they follow.
// Users are owned by the store; the digest pipeline treats them as read-only.
type User struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	Subscribed bool
	Topics     []string // Subreddit names, in configured order
}

// RawPost is one item as returned by the content source, before validation.
type RawPost struct {
	Ups       int
	Title     string
	Thumbnail string // May be absent or not a usable image URL
}

// Post is a validated post ready for rendering. Thumbnail is always set.
type Post struct {
	Ups       int
	Title     string
	Thumbnail string
}

// TopicPosts holds the validated top posts for one subreddit.
type TopicPosts struct {
	Topic string
	Link  string // Canonical top-posts page for the subreddit
	Posts []Post // Upstream rank order, at most three
}

// Digest is the per-user, per-run collection of non-empty topic results.
// Digests are ephemeral: built fresh each run, never persisted.
type Digest struct {
	User   User
	Topics []TopicPosts
}

// Empty reports whether every one of the user's topics came back without posts.
func (d Digest) Empty() bool {
	return len(d.Topics) == 0
}

// Outcome reports the result of one delivery attempt.
type Outcome struct {
	Sent bool
	Err  error
}
