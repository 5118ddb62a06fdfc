package digest

import (
	"testing"

	"reddit-newsletter/pkg/newsletter"
)

func TestAggregateDropsEmptyTopics(t *testing.T) {
	user := newsletter.User{Email: "jane@example.com", Topics: []string{"a", "b", "c"}}
	topics := []newsletter.TopicPosts{
		{Topic: "a", Posts: []newsletter.Post{{Ups: 1, Title: "x"}}},
		{Topic: "b"},
		{Topic: "c", Posts: []newsletter.Post{{Ups: 2, Title: "y"}, {Ups: 1, Title: "z"}}},
	}

	d := Aggregate(user, topics)

	if len(d.Topics) != 2 {
		t.Fatalf("Aggregate() kept %d topics, want 2", len(d.Topics))
	}
	if d.Topics[0].Topic != "a" || d.Topics[1].Topic != "c" {
		t.Errorf("Aggregate() order = [%s %s], want [a c]", d.Topics[0].Topic, d.Topics[1].Topic)
	}
	if d.User.Email != user.Email {
		t.Errorf("Aggregate() user = %q, want %q", d.User.Email, user.Email)
	}
}

func TestAggregateAllEmpty(t *testing.T) {
	d := Aggregate(newsletter.User{Email: "jane@example.com"}, []newsletter.TopicPosts{
		{Topic: "a"},
		{Topic: "b"},
	})

	if !d.Empty() {
		t.Error("Aggregate() of all-empty topics should yield an empty digest")
	}
}

func TestAggregateNoTopics(t *testing.T) {
	d := Aggregate(newsletter.User{Email: "jane@example.com"}, nil)
	if !d.Empty() {
		t.Error("Aggregate() of nil topics should yield an empty digest")
	}
}
