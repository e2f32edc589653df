// Package diagnostics implements the on-demand network diagnostics spec §6
// exposes synchronously: ping, traceroute, mtr, DNS lookup, and TCP port
// scan. Ping reuses the Prober (spec §4.3); traceroute/mtr are grounded on
// the same ICMP primitives pro-bing builds on (golang.org/x/net/icmp,
// already part of the dependency graph as pro-bing's transitive import,
// promoted here to a direct one).
package diagnostics

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/fleetwatch/monitor/internal/domain/telemetry"
	"github.com/fleetwatch/monitor/internal/prober"
)

// Config bounds every diagnostic run (spec §6 "synchronous diagnostic
// result" — these MUST complete in bounded time, not run indefinitely).
type Config struct {
	MaxHops         int
	ProbesPerHop    int
	HopTimeout      time.Duration
	MTRRounds       int
	PortScanTimeout time.Duration
	DefaultPorts    []int
}

func (c Config) withDefaults() Config {
	if c.MaxHops <= 0 {
		c.MaxHops = 30
	}
	if c.ProbesPerHop <= 0 {
		c.ProbesPerHop = 3
	}
	if c.HopTimeout <= 0 {
		c.HopTimeout = 2 * time.Second
	}
	if c.MTRRounds <= 0 {
		c.MTRRounds = 5
	}
	if c.PortScanTimeout <= 0 {
		c.PortScanTimeout = 2 * time.Second
	}
	if len(c.DefaultPorts) == 0 {
		c.DefaultPorts = []int{22, 23, 80, 161, 443, 8080}
	}
	return c
}

// Runner executes diagnostics on demand. It is deliberately stateless
// across calls — every method resolves and probes fresh, since operators
// expect a diagnostic to reflect the network's condition right now.
type Runner struct {
	cfg    Config
	prober *prober.Prober
}

// New constructs a Runner. p is reused for the ping diagnostic so results
// match what the scheduler's own probe cycle would observe.
func New(cfg Config, p *prober.Prober) *Runner {
	return &Runner{cfg: cfg.withDefaults(), prober: p}
}

// Ping runs the same ICMP probe the scheduler uses, on demand.
func (r *Runner) Ping(_ context.Context, ip string) (telemetry.PingResult, error) {
	return r.prober.Ping(ip)
}

// Hop is one traceroute/mtr hop: the router that replied at a given TTL, or
// a timed-out slot if nothing answered within HopTimeout.
type Hop struct {
	TTL       int      `json:"ttl"`
	Addr      string   `json:"addr,omitempty"`
	RTTMillis *float64 `json:"rtt_ms,omitempty"`
	Loss      float64  `json:"loss_pct"`
	TimedOut  bool     `json:"timed_out"`
}

// TracerouteResult is one traceroute run's full hop list.
type TracerouteResult struct {
	Target  string `json:"target"`
	Hops    []Hop  `json:"hops"`
	Reached bool   `json:"reached"`
}

// Traceroute sends increasing-TTL ICMP echoes and records who replies at
// each hop, stopping at the first reply from target or at MaxHops.
func (r *Runner) Traceroute(ctx context.Context, target string) (*TracerouteResult, error) {
	dst, err := net.ResolveIPAddr("ip4", target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("open icmp socket: %w", err)
	}
	defer conn.Close()
	pconn := conn.IPv4PacketConn()

	result := &TracerouteResult{Target: target}
	id := int(time.Now().UnixNano() & 0xffff)

	for ttl := 1; ttl <= r.cfg.MaxHops; ttl++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		hop, fromTarget, err := r.probeHop(pconn, dst, id, ttl)
		if err != nil {
			hop = Hop{TTL: ttl, TimedOut: true, Loss: 100}
		}
		result.Hops = append(result.Hops, hop)
		if fromTarget {
			result.Reached = true
			break
		}
	}
	return result, nil
}

// probeHop sends one TTL-scoped echo and waits up to HopTimeout for any
// ICMP reply (time-exceeded from an intermediate hop, or an echo reply
// directly from the target).
func (r *Runner) probeHop(pconn *ipv4.PacketConn, dst *net.IPAddr, id, ttl int) (Hop, bool, error) {
	if err := pconn.SetTTL(ttl); err != nil {
		return Hop{}, false, err
	}

	wb, err := (&icmp.Message{
		Type: ipv4.ICMPTypeEcho, Code: 0,
		Body: &icmp.Echo{ID: id, Seq: ttl, Data: []byte("fleetwatch-traceroute")},
	}).Marshal(nil)
	if err != nil {
		return Hop{}, false, err
	}

	start := time.Now()
	if _, err := pconn.WriteTo(wb, nil, dst); err != nil {
		return Hop{}, false, err
	}
	if err := pconn.SetReadDeadline(time.Now().Add(r.cfg.HopTimeout)); err != nil {
		return Hop{}, false, err
	}

	rb := make([]byte, 1500)
	n, _, peer, err := pconn.ReadFrom(rb)
	if err != nil {
		return Hop{TTL: ttl, TimedOut: true, Loss: 100}, false, nil
	}
	rtt := time.Since(start)

	msg, err := icmp.ParseMessage(1, rb[:n])
	if err != nil {
		return Hop{TTL: ttl, TimedOut: true, Loss: 100}, false, nil
	}

	rttMs := float64(rtt) / float64(time.Millisecond)
	addr := ""
	if peer != nil {
		addr = peer.String()
	}
	fromTarget := msg.Type == ipv4.ICMPTypeEchoReply && addr == dst.String()
	return Hop{TTL: ttl, Addr: addr, RTTMillis: &rttMs}, fromTarget, nil
}

// MTRHop aggregates one hop's stats across MTRRounds traceroute rounds,
// the way `mtr` combines loss/latency per hop instead of one-shot RTTs.
type MTRHop struct {
	TTL         int      `json:"ttl"`
	Addr        string   `json:"addr,omitempty"`
	SentCount   int      `json:"sent"`
	LossPct     float64  `json:"loss_pct"`
	BestMillis  *float64 `json:"best_ms,omitempty"`
	AvgMillis   *float64 `json:"avg_ms,omitempty"`
	WorstMillis *float64 `json:"worst_ms,omitempty"`
}

// MTRResult is the per-hop aggregate across every round.
type MTRResult struct {
	Target string   `json:"target"`
	Rounds int      `json:"rounds"`
	Hops   []MTRHop `json:"hops"`
}

// MTR runs MTRRounds traceroute passes and aggregates loss/latency per hop
// by TTL, so a lossy or slow hop mid-path is visible even when the final
// destination itself replies reliably.
func (r *Runner) MTR(ctx context.Context, target string) (*MTRResult, error) {
	type sample struct {
		addr string
		rtts []float64
		sent int
	}
	byTTL := map[int]*sample{}

	for round := 0; round < r.cfg.MTRRounds; round++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		tr, err := r.Traceroute(ctx, target)
		if err != nil {
			continue
		}
		for _, hop := range tr.Hops {
			s, ok := byTTL[hop.TTL]
			if !ok {
				s = &sample{}
				byTTL[hop.TTL] = s
			}
			s.sent++
			if hop.Addr != "" {
				s.addr = hop.Addr
			}
			if hop.RTTMillis != nil {
				s.rtts = append(s.rtts, *hop.RTTMillis)
			}
		}
	}

	result := &MTRResult{Target: target, Rounds: r.cfg.MTRRounds}
	ttls := make([]int, 0, len(byTTL))
	for ttl := range byTTL {
		ttls = append(ttls, ttl)
	}
	sort.Ints(ttls)
	for _, ttl := range ttls {
		s := byTTL[ttl]
		h := MTRHop{TTL: ttl, Addr: s.addr, SentCount: s.sent}
		if s.sent > 0 {
			h.LossPct = float64(s.sent-len(s.rtts)) / float64(s.sent) * 100
		}
		if len(s.rtts) > 0 {
			best, worst, sum := s.rtts[0], s.rtts[0], 0.0
			for _, v := range s.rtts {
				if v < best {
					best = v
				}
				if v > worst {
					worst = v
				}
				sum += v
			}
			avg := sum / float64(len(s.rtts))
			h.BestMillis, h.AvgMillis, h.WorstMillis = &best, &avg, &worst
		}
		result.Hops = append(result.Hops, h)
	}
	return result, nil
}

// DNSLookupResult is the resolved address set for a hostname.
type DNSLookupResult struct {
	Hostname string   `json:"hostname"`
	IPs      []string `json:"ips"`
}

// DNSLookup resolves hostname to its A/AAAA records. No third-party DNS
// library is wired anywhere in the retrieved example repos; net.Resolver
// is the entire contract this diagnostic needs.
func (r *Runner) DNSLookup(ctx context.Context, hostname string) (*DNSLookupResult, error) {
	ips, err := net.DefaultResolver.LookupHost(ctx, hostname)
	if err != nil {
		return nil, err
	}
	return &DNSLookupResult{Hostname: hostname, IPs: ips}, nil
}

// PortResult is one scanned port's outcome.
type PortResult struct {
	Port int  `json:"port"`
	Open bool `json:"open"`
}

// PortScanResult is a full scan's per-port outcomes.
type PortScanResult struct {
	Target string       `json:"target"`
	Ports  []PortResult `json:"ports"`
}

// PortScan attempts a TCP connect to each of ports (or Config.DefaultPorts
// if none given) and reports which accepted a connection. This is a
// connect scan, not a raw SYN scan: no third-party scanner library appears
// anywhere in the retrieved examples, and a connect scan needs nothing
// beyond net.DialTimeout.
func (r *Runner) PortScan(ctx context.Context, target string, ports []int) (*PortScanResult, error) {
	if len(ports) == 0 {
		ports = r.cfg.DefaultPorts
	}
	result := &PortScanResult{Target: target}
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		addr := net.JoinHostPort(target, fmt.Sprintf("%d", port))
		conn, err := net.DialTimeout("tcp", addr, r.cfg.PortScanTimeout)
		open := err == nil
		if conn != nil {
			conn.Close()
		}
		result.Ports = append(result.Ports, PortResult{Port: port, Open: open})
	}
	return result, nil
}
