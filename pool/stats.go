package pool

import "sync/atomic"

// Stats summarises the pool's current resource usage.
type Stats struct {
	OpenConnections int
	InUse           int
	Idle            int
	ActiveReads     int64
	MaxReadConns    int64
}

// Stats reports the pool's current resource usage.
func (p *Pool) Stats() Stats {
	s := p.db.Stats()
	return Stats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		ActiveReads:     atomic.LoadInt64(&p.activeReads),
		MaxReadConns:    p.maxReads,
	}
}
