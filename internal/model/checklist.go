// Package model defines the data structures shared across layers.
package model

import "time"

// ChecklistItem is one tick-box of lesson progress ("arrays-push",
// "maps-iteration", ...). The key is chosen by the client; the store only
// remembers whether it is checked.
type ChecklistItem struct {
	Key       string    `json:"key"`
	Checked   bool      `json:"checked"`
	UpdatedAt time.Time `json:"updatedAt"`
}
