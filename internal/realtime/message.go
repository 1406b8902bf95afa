package realtime

import (
	"fmt"
	"strconv"
)

const (
	TypeBoardUpdated = "BoardUpdated"
	TypeUpdateBoard  = "UpdateBoard"
	TypeError        = "Error"
)

// Message is the JSON frame exchanged over the board websocket. Project ids
// travel as strings.
type Message struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func boardUpdated(projectID int64) Message {
	return Message{Type: TypeBoardUpdated, ProjectID: strconv.FormatInt(projectID, 10)}
}

func errorMessage(msg string) Message {
	return Message{Type: TypeError, Error: msg}
}

// ParseProjectID parses a wire project id. Zero and negative ids are invalid.
func ParseProjectID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project id %q", s)
	}
	return id, nil
}
