// Package presence announces this daemon on the bus and tracks peers,
// so desktop UIs can discover a running instance before attaching to
// the dictation subjects.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/murmurlabs/murmur-core/internal/bus"
	"github.com/murmurlabs/murmur-core/internal/config"
)

const (
	subjectAnnounce  = "presence.announce"
	subjectHeartbeat = "presence.heartbeat"
)

// NodeInfo describes one daemon instance seen on the bus.
type NodeInfo struct {
	ID       string    `json:"id"`
	Runtime  string    `json:"runtime"`
	LastSeen time.Time `json:"last_seen"`
	Healthy  bool      `json:"healthy"`
}

type announceMessage struct {
	NodeID    string    `json:"node_id"`
	Runtime   string    `json:"runtime"`
	Timestamp time.Time `json:"timestamp"`
}

type heartbeatMessage struct {
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker announces the local node, publishes heartbeats and keeps a
// health view of every node on the bus.
type Tracker struct {
	cfg       config.NodeConfig
	runtime   string
	log       *slog.Logger
	bus       *bus.Client
	mu        sync.RWMutex
	nodes     map[string]*NodeInfo
	heartbeat *time.Ticker
	cancel    context.CancelFunc
	subs      []*nats.Subscription
}

func NewTracker(ctx context.Context, cfg config.NodeConfig, runtimeName string, busClient *bus.Client, log *slog.Logger) (*Tracker, error) {
	ctx, cancel := context.WithCancel(ctx)
	t := &Tracker{
		cfg:     cfg,
		runtime: runtimeName,
		log:     log.With(slog.String("component", "presence")),
		bus:     busClient,
		nodes:   make(map[string]*NodeInfo),
		cancel:  cancel,
	}

	if err := t.initMetrics(); err != nil {
		t.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}

	if err := t.subscribe(); err != nil {
		t.cancel()
		return nil, err
	}

	t.heartbeat = time.NewTicker(time.Duration(cfg.HeartbeatInterval) * time.Millisecond)
	go t.runHeartbeat(ctx)
	go t.monitorHealth(ctx)

	if err := t.announce(); err != nil {
		t.log.Warn("failed to announce node", slog.String("error", err.Error()))
	}

	return t, nil
}

func (t *Tracker) Close() {
	if t.cancel != nil {
		t.cancel()
	}
	if t.heartbeat != nil {
		t.heartbeat.Stop()
	}
	for _, sub := range t.subs {
		_ = sub.Drain()
	}
}

func (t *Tracker) subscribe() error {
	conn := t.bus.Conn()
	announceSub, err := conn.Subscribe(subjectAnnounce, t.handleAnnounce)
	if err != nil {
		return fmt.Errorf("subscribe announce: %w", err)
	}
	t.subs = append(t.subs, announceSub)

	heartbeatSub, err := conn.Subscribe(subjectHeartbeat+".*", t.handleHeartbeat)
	if err != nil {
		return fmt.Errorf("subscribe heartbeat: %w", err)
	}
	t.subs = append(t.subs, heartbeatSub)

	return nil
}

func (t *Tracker) runHeartbeat(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.heartbeat.C:
			if err := t.publishHeartbeat(); err != nil {
				t.log.Warn("failed to publish heartbeat", slog.String("error", err.Error()))
			}
		}
	}
}

func (t *Tracker) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.evaluateHealth()
		}
	}
}

func (t *Tracker) announce() error {
	msg := announceMessage{
		NodeID:    t.cfg.ID,
		Runtime:   t.runtime,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := t.bus.Conn().Publish(subjectAnnounce, payload); err != nil {
		return err
	}
	t.updateNode(msg.NodeID, msg.Runtime, msg.Timestamp)
	return nil
}

func (t *Tracker) publishHeartbeat() error {
	msg := heartbeatMessage{
		NodeID:    t.cfg.ID,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s.%s", subjectHeartbeat, t.cfg.ID)
	return t.bus.Conn().Publish(subject, payload)
}

func (t *Tracker) handleAnnounce(msg *nats.Msg) {
	var announcement announceMessage
	if err := json.Unmarshal(msg.Data, &announcement); err != nil {
		t.log.Warn("invalid announce message", slog.String("error", err.Error()))
		return
	}
	if announcement.Timestamp.IsZero() {
		announcement.Timestamp = time.Now().UTC()
	}
	t.updateNode(announcement.NodeID, announcement.Runtime, announcement.Timestamp)
}

func (t *Tracker) handleHeartbeat(msg *nats.Msg) {
	var hb heartbeatMessage
	if err := json.Unmarshal(msg.Data, &hb); err != nil {
		t.log.Warn("invalid heartbeat message", slog.String("error", err.Error()))
		return
	}
	if hb.Timestamp.IsZero() {
		hb.Timestamp = time.Now().UTC()
	}
	t.updateNode(hb.NodeID, "", hb.Timestamp)
}

func (t *Tracker) updateNode(nodeID, runtime string, timestamp time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[nodeID]
	if !ok {
		node = &NodeInfo{ID: nodeID}
		t.nodes[nodeID] = node
	}
	if runtime != "" {
		node.Runtime = runtime
	}
	node.LastSeen = timestamp
	node.Healthy = true
}

func (t *Tracker) evaluateHealth() {
	t.mu.Lock()
	defer t.mu.Unlock()

	timeout := time.Duration(t.cfg.HeartbeatTimeout) * time.Millisecond
	now := time.Now()
	for _, node := range t.nodes {
		if now.Sub(node.LastSeen) > timeout {
			node.Healthy = false
		}
	}
}

// Healthy reports whether the local node's own heartbeat is current.
func (t *Tracker) Healthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node, ok := t.nodes[t.cfg.ID]
	if !ok {
		return false
	}
	return node.Healthy
}

// Nodes returns a snapshot of every node seen on the bus.
func (t *Tracker) Nodes() []NodeInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var results []NodeInfo
	for _, node := range t.nodes {
		results = append(results, *node)
	}
	return results
}

func (t *Tracker) initMetrics() error {
	meter := otel.Meter("murmur-core/presence")
	nodeGauge, err := meter.Int64ObservableGauge("murmur.presence.nodes",
		metric.WithDescription("Number of known nodes"))
	if err != nil {
		return err
	}
	healthyGauge, err := meter.Int64ObservableGauge("murmur.presence.nodes.healthy",
		metric.WithDescription("Number of nodes with a current heartbeat"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		nodes, healthy := t.snapshotCounts()
		obs.ObserveInt64(nodeGauge, nodes)
		obs.ObserveInt64(healthyGauge, healthy)
		return nil
	}, nodeGauge, healthyGauge)
	return err
}

func (t *Tracker) snapshotCounts() (int64, int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var nodes int64
	var healthy int64
	for _, node := range t.nodes {
		nodes++
		if node.Healthy {
			healthy++
		}
	}
	return nodes, healthy
}
