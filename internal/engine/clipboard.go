package engine

import "github.com/ovenlight/mealboard/internal/plugins/meals"

// ClipboardAction distinguishes a pending copy from a pending cut.
type ClipboardAction string

const (
	ClipboardCopy ClipboardAction = "copy"
	ClipboardCut  ClipboardAction = "cut"
)

// Clipboard holds at most one pending copy-or-cut operation. A second
// copy or cut overwrites the held entry; paste, cancel, and deletion of
// the held entry all return it to empty.
type Clipboard struct {
	entry  *meals.Entry
	action ClipboardAction
}

// Copy holds a snapshot of the entry for a later clone-paste.
func (c *Clipboard) Copy(entry meals.Entry) {
	c.entry = &entry
	c.action = ClipboardCopy
}

// Cut holds the entry for a later move-paste.
func (c *Clipboard) Cut(entry meals.Entry) {
	c.entry = &entry
	c.action = ClipboardCut
}

// Holding reports whether the clipboard has a pending operation.
func (c *Clipboard) Holding() bool { return c.entry != nil }

// Held returns the held entry and action. The entry is nil when empty.
func (c *Clipboard) Held() (*meals.Entry, ClipboardAction) {
	return c.entry, c.action
}

// Clear empties the clipboard.
func (c *Clipboard) Clear() {
	c.entry = nil
	c.action = ""
}

// Evict clears the clipboard if it holds the given entry, used when that
// entry is deleted out from under a pending paste.
func (c *Clipboard) Evict(entryID string) {
	if c.entry != nil && c.entry.ID == entryID {
		c.Clear()
	}
}
