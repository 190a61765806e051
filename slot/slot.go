// Package slot defines the stable index type shared by the task pool, the
// job pool, and every layer that addresses either by number instead of by
// pointer.
package slot

import "fmt"

// Index is a stable slot number handed out by a Pool. It stays valid for the
// lifetime of the borrow it names and is never reused while that borrow is
// outstanding.
type Index uint32

// None is the all-bits-set sentinel for "no index" contexts (e.g. a Job that
// does not (yet) own a task). It is not the zero value: Index(0) is a valid
// slot.
const None Index = ^Index(0)

func (i Index) String() string {
	if i == None {
		return "slot.None"
	}
	return fmt.Sprintf("slot(%d)", uint32(i))
}
