//go:build !tpx3_epics

package bus

import "log/slog"

// LogFacade is the default Facade: it logs every publication instead of
// writing into a real EPICS parameter table. Used whenever the driver is
// built without the tpx3_epics tag (local testing, CI, non-IOC hosts).
type LogFacade struct {
	logger *slog.Logger
	queue  *Queue
}

// NewLogFacade builds a LogFacade that logs through logger.
func NewLogFacade(logger *slog.Logger) *LogFacade {
	return &LogFacade{logger: logger, queue: NewQueue(256)}
}

func (f *LogFacade) SetScalar(name string, value float64) {
	f.logger.Debug("bus scalar", "name", name, "value", value)
}

func (f *LogFacade) SetString(name string, value string) {
	f.logger.Debug("bus string", "name", name, "value", value)
}

func (f *LogFacade) PublishArray32(name string, data []uint32) {
	f.logger.Debug("bus array32", "name", name, "len", len(data))
}

func (f *LogFacade) PublishArray64(name string, data []uint64) {
	f.logger.Debug("bus array64", "name", name, "len", len(data))
}

func (f *LogFacade) Callbacks() <-chan Callback {
	return f.queue.Channel()
}

func (f *LogFacade) Close() error {
	f.queue.Close()
	return nil
}
