package handlers

import (
	"fmt"
	"strings"

	"github.com/roomcast/roomcast/internal/protocol"
)

// validateJoin rejects joins with blank room names or display names.
// Names are taken as-is otherwise; rooms are case-sensitive.
func validateJoin(join protocol.JoinRoom) error {
	if strings.TrimSpace(join.Room) == "" {
		return fmt.Errorf("room required")
	}
	if strings.TrimSpace(join.Username) == "" {
		return fmt.Errorf("username required")
	}
	return nil
}
