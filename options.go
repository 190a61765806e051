package tardy

import (
	"fmt"

	"github.com/Torbatti/tardy/aio"
)

// Options configures a Runtime's fixed capacities. size_aio_reap_max must
// not exceed size_aio_jobs_max.
type Options struct {
	TasksMax   uint16
	AIOJobsMax uint16
	AIOReapMax uint16
}

// DefaultOptions mirrors aio.DefaultOptions, sized for a modest
// single-threaded workload.
func DefaultOptions() Options {
	return Options{TasksMax: 1024, AIOJobsMax: 1024, AIOReapMax: 256}
}

// Validate enforces the reap/jobs capacity invariant.
func (o Options) Validate() error {
	if o.AIOReapMax > o.AIOJobsMax {
		return fmt.Errorf("tardy: AIOReapMax (%d) exceeds AIOJobsMax (%d)", o.AIOReapMax, o.AIOJobsMax)
	}
	if o.TasksMax == 0 || o.AIOJobsMax == 0 || o.AIOReapMax == 0 {
		return fmt.Errorf("tardy: all capacities must be positive")
	}
	return nil
}

func (o Options) aioOptions() aio.Options {
	return aio.Options{JobsMax: o.AIOJobsMax, ReapMax: o.AIOReapMax}
}
