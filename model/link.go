package model

// NetworkLink is the inferred communication relationship between an ordered
// pair of nodes, scoped to a session. Links are never signaled explicitly by
// the protocol; they are derived from observed packet routing.
//
// Rolling statistics are maintained incrementally: each observation folds
// into the means in O(1) using new_mean = (old_mean*n + v) / (n+1). The
// full sample history is never retained or replayed.
type NetworkLink struct {
	SessionID   int64    `json:"session_id,omitempty"`
	FromID      string   `json:"from_id"`
	ToID        string   `json:"to_id"`
	RSSI        *int     `json:"rssi,omitempty"`
	SNR         *float64 `json:"snr,omitempty"`
	SuccessRate float64  `json:"success_rate"`
	LastSeen    int64    `json:"last_seen"`
	Direct      bool     `json:"is_direct"`
	PacketCount int64    `json:"packet_count"`
	AvgRSSI     float64  `json:"avg_rssi"`
	AvgSNR      float64  `json:"avg_snr"`
	AvgHopCount float64  `json:"avg_hop_count"`
}

// LinkObservation is a single packet's contribution to a link.
type LinkObservation struct {
	RSSI     *int
	SNR      *float64
	HopCount HopCount
	SeenAt   int64
}

// NewLink creates a link from its first observation.
func NewLink(fromID, toID string, obs LinkObservation) NetworkLink {
	l := NetworkLink{
		FromID: fromID,
		ToID:   toID,
		// success_rate has no negative-signal input yet; it is a hook for
		// future NACK/retry accounting and always reads 1.0 today.
		SuccessRate: 1.0,
	}
	l.Observe(obs)
	return l
}

// Observe folds one packet observation into the link's rolling statistics.
// PacketCount is strictly monotonic; the three means update incrementally
// without revisiting history.
func (l *NetworkLink) Observe(obs LinkObservation) {
	n := float64(l.PacketCount)

	if obs.RSSI != nil {
		l.RSSI = obs.RSSI
		l.AvgRSSI = (l.AvgRSSI*n + float64(*obs.RSSI)) / (n + 1)
	}
	if obs.SNR != nil {
		l.SNR = obs.SNR
		l.AvgSNR = (l.AvgSNR*n + *obs.SNR) / (n + 1)
	}
	if obs.HopCount.Known() {
		l.AvgHopCount = (l.AvgHopCount*n + float64(obs.HopCount)) / (n + 1)
	}

	l.Direct = obs.HopCount.Direct()
	l.PacketCount++
	if obs.SeenAt > l.LastSeen {
		l.LastSeen = obs.SeenAt
	}
	if l.SuccessRate == 0 {
		l.SuccessRate = 1.0
	}
}

// Key returns the map key identifying this link within a session.
func (l *NetworkLink) Key() string {
	return LinkKey(l.FromID, l.ToID)
}

// LinkKey builds the map key for an ordered node pair.
func LinkKey(fromID, toID string) string {
	return fromID + ">" + toID
}
