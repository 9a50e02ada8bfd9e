package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Health is the database section of the viewer's health report.
type Health struct {
	Healthy       bool   `json:"healthy"`
	Error         string `json:"error,omitempty"`
	TotalConns    int32  `json:"total_conns"`
	IdleConns     int32  `json:"idle_conns"`
	AcquiredConns int32  `json:"acquired_conns"`
	MaxConns      int32  `json:"max_conns"`
}

// Check pings the pool with a short deadline and snapshots its statistics.
func Check(ctx context.Context, pool *pgxpool.Pool) *Health {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stat := pool.Stat()
	h := &Health{
		Healthy:       true,
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
	}
	if err := pool.Ping(ctx); err != nil {
		h.Healthy = false
		h.Error = err.Error()
	}
	return h
}
