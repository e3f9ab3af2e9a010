package models

import "time"

// Friend is a recipient of video messages. Friends are created out-of-band and
// authenticate with their access code.
type Friend struct {
	ID         string
	Name       string
	AccessCode string
	Verse      *Verse
}

// Verse is an optional encouragement shown on a friend's dashboard.
type Verse struct {
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

// Message is a video addressed to exactly one friend.
type Message struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	StorageRef  string    `json:"storageRef"`
	Title       string    `json:"title"`
	Viewed      bool      `json:"viewed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Session is the identity pair handed to a client after a successful lookup.
type Session struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Unviewed counts the messages whose video has not been started yet.
func Unviewed(messages []Message) int {
	n := 0
	for _, m := range messages {
		if !m.Viewed {
			n++
		}
	}
	return n
}

// DownloadName is the file name suggested when a message video is saved.
func DownloadName(title string) string {
	return title + ".mp4"
}
