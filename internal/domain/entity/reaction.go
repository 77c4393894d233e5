package entity

import "time"

type Reaction struct {
	Emoji     string    `json:"emoji" firestore:"emoji"`
	UserID    string    `json:"userId" firestore:"userId"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

type ReactionSummary struct {
	Emoji   string   `json:"emoji"`
	Count   int      `json:"count"`
	Mine    bool     `json:"mine"`
	UserIDs []string `json:"userIds"`
}

// ToggleReaction removes (emoji, userID) when present and appends it
// otherwise. Applying it twice yields the original set. The input slice is
// not modified.
func ToggleReaction(reactions []Reaction, emoji, userID string, now time.Time) []Reaction {
	out := make([]Reaction, 0, len(reactions)+1)
	removed := false
	for _, r := range reactions {
		if r.Emoji == emoji && r.UserID == userID {
			removed = true
			continue
		}
		out = append(out, r)
	}
	if !removed {
		out = append(out, Reaction{Emoji: emoji, UserID: userID, CreatedAt: now})
	}
	return out
}

func HasReaction(reactions []Reaction, emoji, userID string) bool {
	for _, r := range reactions {
		if r.Emoji == emoji && r.UserID == userID {
			return true
		}
	}
	return false
}

// Summarize groups reactions by emoji in order of first appearance.
func Summarize(reactions []Reaction, localUserID string) []ReactionSummary {
	index := make(map[string]int)
	summaries := make([]ReactionSummary, 0)
	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(summaries)
			index[r.Emoji] = i
			summaries = append(summaries, ReactionSummary{Emoji: r.Emoji})
		}
		summaries[i].Count++
		summaries[i].UserIDs = append(summaries[i].UserIDs, r.UserID)
		if r.UserID == localUserID {
			summaries[i].Mine = true
		}
	}
	return summaries
}

func sameReactions(a, b []Reaction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Emoji != b[i].Emoji || a[i].UserID != b[i].UserID {
			return false
		}
	}
	return true
}
