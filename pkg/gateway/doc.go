// Package gateway implements the persistent, multiplexed event connection to
// the chat platform: shard sessions, heartbeating, reconnection policy, and
// coordinated multi-shard startup.
//
// # Shards
//
// Event traffic is partitioned across shards, each owning one WebSocket
// connection. A Shard runs a small state machine:
//
//	Disconnected → Connecting → AwaitingHello → Identifying|Resuming
//	    → Connected → Reconnecting → Connecting → ...  → Closed
//
// In steady state the shard decodes envelopes (see package protocol),
// records the dispatch sequence, forwards events to the EventSink, and
// answers heartbeats. Connection loss, zombie detection and invalid-session
// notices feed the ReconnectPolicy, which decides between resuming the
// session, identifying fresh, or surfacing a fatal error.
//
// # Heartbeats and zombie connections
//
// The server announces a heartbeat interval in its Hello. Each shard runs a
// HeartbeatScheduler on that cadence (first beat at a random phase so shard
// fleets do not beat in lockstep). A heartbeat that is still unacknowledged
// when the next tick fires marks the connection as a zombie: the socket is
// force-closed, because a broken network path will not deliver a protocol
// close frame.
//
// # Multi-shard startup
//
// The platform permits one identify per spacing interval across the whole
// set. Manager owns the shard set and a single identify gate; every shard's
// Identifying transition acquires the gate, which re-arms only after the
// interval elapses. One shard failing fatally does not stop the others.
//
// # Usage
//
//	cfg := gateway.DefaultConfig()
//	cfg.Token = token
//	cfg.GatewayURL = info.URL // from rest.Client.GatewayBot
//
//	mgr := gateway.NewManager(cfg, info.Shards, gateway.SinkFunc(func(e gateway.Event) {
//	    log.Printf("shard %s: %s", e.Shard, e.Name)
//	}))
//	if err := mgr.Start(ctx); err != nil {
//	    // handle
//	}
//	defer mgr.Shutdown()
package gateway
