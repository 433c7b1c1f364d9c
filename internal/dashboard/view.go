package dashboard

import (
	"fmt"

	"github.com/ChelseaChanu/taskSync/internal/rbac"
)

const (
	TabReceived = "received"
	TabAssigned = "assigned"

	CardAssignedByMe = "assignedByMe"
	CardReceived     = "received"
	CardCompleted    = "completed"
	CardOverdue      = "overdue"
)

// ViewConfig describes which parts of the task screens a designation sees.
type ViewConfig struct {
	ShowSearchBar bool     `json:"showSearchBar"`
	CanAssign     bool     `json:"canAssign"`
	DefaultTab    string   `json:"defaultTab"`
	Tabs          []string `json:"tabs"`
	Cards         []string `json:"cards"`
}

// ViewConfigFor returns the screen layout for d. The Principal only assigns,
// a Teacher only receives, everyone in between does both.
func ViewConfigFor(d rbac.Designation) ViewConfig {
	switch rbac.Normalize(string(d)) {
	case rbac.Principal:
		return ViewConfig{
			ShowSearchBar: true,
			CanAssign:     true,
			DefaultTab:    TabAssigned,
			Tabs:          []string{TabAssigned},
			Cards:         []string{CardAssignedByMe},
		}
	case rbac.Teacher:
		return ViewConfig{
			ShowSearchBar: false,
			CanAssign:     false,
			DefaultTab:    TabReceived,
			Tabs:          []string{TabReceived},
			Cards:         []string{CardReceived, CardCompleted, CardOverdue},
		}
	default:
		return ViewConfig{
			ShowSearchBar: true,
			CanAssign:     true,
			DefaultTab:    TabReceived,
			Tabs:          []string{TabReceived, TabAssigned},
			Cards:         []string{CardAssignedByMe, CardReceived, CardCompleted, CardOverdue},
		}
	}
}

// Card is a rendered dashboard tile.
type Card struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

var cardText = map[string]struct{ title, empty string }{
	CardAssignedByMe: {"Assigned by Me", "No task yet. Start by assigning one!"},
	CardReceived:     {"Received Tasks", "No task assigned. Come back later!"},
	CardCompleted:    {"Completed", "Will appear once you complete a task!"},
	CardOverdue:      {"Overdue", "No overdue tasks!"},
}

// Cards renders the tiles cfg allows from counts.
func Cards(cfg ViewConfig, counts Counts) []Card {
	values := map[string]int{
		CardAssignedByMe: counts.AssignedByMe,
		CardReceived:     counts.Received,
		CardCompleted:    counts.Completed,
		CardOverdue:      counts.Overdue,
	}
	out := make([]Card, 0, len(cfg.Cards))
	for _, key := range cfg.Cards {
		text := cardText[key]
		n := values[key]
		description := text.empty
		if n > 0 {
			description = pluralTasks(n)
		}
		out = append(out, Card{Key: key, Title: text.title, Count: n, Description: description})
	}
	return out
}

func pluralTasks(n int) string {
	if n == 1 {
		return "1 task"
	}
	return fmt.Sprintf("%d tasks", n)
}
