package linkstats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Speshl/gorrc_remote/internal/config"
	"github.com/prometheus/procfs"
	log "github.com/sirupsen/logrus"
)

var ErrInterfaceNotFound = errors.New("interface not found")

// Monitor samples the packet counters of one network interface, normally the wifi link to the vehicle.
type Monitor struct {
	fs       procfs.FS
	iface    string
	interval time.Duration

	lock   sync.RWMutex
	latest procfs.NetDevLine
}

func NewMonitor(cfg config.LinkConfig) (*Monitor, error) {
	fs, err := procfs.NewFS(cfg.ProcMount)
	if err != nil {
		return nil, fmt.Errorf("error: procfs could not open %s - %w", cfg.ProcMount, err)
	}
	return &Monitor{
		fs:       fs,
		iface:    cfg.Interface,
		interval: cfg.Interval,
	}, nil
}

func (m *Monitor) Read() (procfs.NetDevLine, error) {
	netDev, err := m.fs.NetDev()
	if err != nil {
		return procfs.NetDevLine{}, fmt.Errorf("error: failed getting netstat - %w", err)
	}

	stats, ok := netDev[m.iface]
	if !ok {
		return procfs.NetDevLine{}, fmt.Errorf("%w: %s", ErrInterfaceNotFound, m.iface)
	}

	m.lock.Lock()
	m.latest = stats
	m.lock.Unlock()
	return stats, nil
}

func (m *Monitor) Latest() procfs.NetDevLine {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.latest
}

// Start logs the link counters every interval until ctx is done. A missing interface is logged, not fatal.
func (m *Monitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping link stats: %s", ctx.Err().Error())
			return ctx.Err()
		case <-ticker.C:
			stats, err := m.Read()
			if err != nil {
				log.Warnf("link stats unavailable - %s", err.Error())
				continue
			}
			log.Printf("%s %s", m.iface, Format(stats))
		}
	}
}

func Format(stats procfs.NetDevLine) string {
	return fmt.Sprintf("RxPkt:%d | RxErr:%d | RxDrop: %d | TxPkt:%d | TxErr:%d | TxDrop: %d",
		stats.RxPackets,
		stats.RxErrors,
		stats.RxDropped,
		stats.TxPackets,
		stats.TxErrors,
		stats.TxDropped,
	)
}
