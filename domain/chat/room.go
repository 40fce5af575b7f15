package chat

// Room is a chat room as exposed by the directory.
type Room struct {
	ID           string `json:"roomId"`
	Name         string `json:"name"`
	Participants int    `json:"participants"`
}
