package devtools

import (
	"fmt"
	"io"
)

// WriteLog writes one line per timeline entry: a cursor marker, the index,
// the action type and the state as JSON.
func (c *Console) WriteLog(w io.Writer) error {
	entries := c.Entries()
	cursor := c.Cursor()

	for _, e := range entries {
		marker := " "
		if e.Index == cursor {
			marker = ">"
		}
		state, err := e.State.MarshalJSON()
		if err != nil {
			return fmt.Errorf("entry %d: %w", e.Index, err)
		}
		if _, err := fmt.Fprintf(w, "%s %3d  %-28s %s\n", marker, e.Index, e.Action, state); err != nil {
			return err
		}
	}
	return nil
}
