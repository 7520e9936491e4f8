package event

import (
	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
	"github.com/c360/meshview/pkg/timestamp"
)

// Normalizer converts raw decoded device records into typed events. It is
// a pure transformation: no I/O, no state beyond the rules themselves, so
// a single instance is safe for concurrent use.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize classifies a raw record by its kind tag and produces the
// matching typed event. Unrecognized kinds degrade to GenericPacket so
// nothing observed on the mesh is dropped outright. The returned event
// has already passed Validate.
func (n *Normalizer) Normalize(kind string, raw map[string]any) (Event, error) {
	r := Raw(raw)
	if r == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidEvent, "Normalizer", "Normalize", "nil record")
	}

	var ev Event
	switch Kind(kind) {
	case KindNodeInfo:
		ev = n.nodeInfo(r)
	case KindTextMessage:
		ev = n.textMessage(r)
	case KindPositionUpdate:
		ev = n.positionUpdate(r)
	case KindTelemetry:
		ev = n.telemetry(r)
	case KindNetworkLink:
		ev = n.networkLink(r)
	case KindConnectionEstablished:
		ev = &ConnectionStatus{Connected: true, LocalNodeID: r.str("local_node_id"), Timestamp: eventTime(r)}
	case KindConnectionLost:
		ev = &ConnectionStatus{Connected: false, Timestamp: eventTime(r)}
	default:
		ev = n.genericPacket(kind, r)
	}

	if err := ev.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Normalizer", "Normalize", "record failed validation")
	}
	return ev, nil
}

func (n *Normalizer) nodeInfo(r Raw) *NodeInfo {
	// The device interface nests identity under "node"; flat records from
	// replay tooling carry the same fields at the top level.
	nr := r.sub("node")
	if nr == nil {
		nr = r
	}

	id := nr.str("id")
	if id == "" {
		id = nr.str("node_id")
	}

	node := model.NewNode(id)
	if v := nr.str("short_name"); v != "" {
		node.ShortName = v
	}
	node.LongName = nr.str("long_name")
	node.HardwareModel = nr.str("hardware_model")
	if v := nr.str("role"); v != "" {
		node.Role = model.RoleFromString(v)
	} else if p := nr.intPtr("role"); p != nil {
		node.Role = model.RoleFromCode(*p)
	}
	if b, ok := nr["is_licensed"].(bool); ok {
		node.IsLicensed = b
	}
	node.BatteryLevel = nr.intPtr("battery_level")
	node.Voltage = nr.floatPtr("voltage")

	// Reception context rides at the top level regardless of nesting.
	node.RSSI = r.intPtr("rssi")
	node.SNR = r.floatPtr("snr")
	if node.RSSI != nil {
		node.SignalQuality = model.QualityFromRSSI(*node.RSSI)
	}
	node.HopCount = hopCount(r)
	node.LastHeard = eventTime(r)

	return &NodeInfo{Node: node, Timestamp: node.LastHeard}
}

func (n *Normalizer) textMessage(r Raw) *TextMessage {
	return &TextMessage{
		FromID:    r.str("from_id"),
		FromName:  r.str("from_name"),
		ToID:      normalizeID(r.str("to_id")),
		ToName:    r.str("to_name"),
		Text:      r.str("text"),
		RSSI:      r.intPtr("rssi"),
		SNR:       r.floatPtr("snr"),
		HopCount:  hopCount(r),
		Channel:   r.intOr("channel", 0),
		Timestamp: eventTime(r),
	}
}

func (n *Normalizer) positionUpdate(r Raw) *PositionUpdate {
	return &PositionUpdate{
		NodeID:    r.str("node_id"),
		Latitude:  r.floatPtr("latitude"),
		Longitude: r.floatPtr("longitude"),
		Altitude:  r.floatPtr("altitude"),
		Timestamp: eventTime(r),
	}
}

func (n *Normalizer) telemetry(r Raw) *Telemetry {
	t := &Telemetry{
		NodeID:    r.str("node_id"),
		RSSI:      r.intPtr("rssi"),
		SNR:       r.floatPtr("snr"),
		HopCount:  hopCount(r),
		Timestamp: eventTime(r),
	}

	if dm := r.sub("device_metrics"); dm != nil {
		t.BatteryLevel = dm.intPtr("batteryLevel")
		t.Voltage = dm.floatPtr("voltage")
		t.ChannelUtil = dm.floatPtr("channelUtilization")
		t.AirUtilTx = dm.floatPtr("airUtilTx")
		t.UptimeSeconds = dm.int64Ptr("uptimeSeconds")
	}
	if em := r.sub("environment_metrics"); em != nil {
		t.Temperature = em.floatPtr("temperature")
		t.Humidity = em.floatPtr("relativeHumidity")
		t.Pressure = em.floatPtr("barometricPressure")
	}

	return t
}

func (n *Normalizer) networkLink(r Raw) *NetworkLink {
	return &NetworkLink{
		FromID:    r.str("from_id"),
		ToID:      normalizeID(r.str("to_id")),
		RSSI:      r.intPtr("rssi"),
		SNR:       r.floatPtr("snr"),
		HopCount:  hopCount(r),
		Timestamp: eventTime(r),
	}
}

func (n *Normalizer) genericPacket(kind string, r Raw) *GenericPacket {
	packetType := r.str("packet_type")
	if packetType == "" {
		packetType = kind
	}

	payload := r
	if p := r.sub("payload"); p != nil {
		payload = p
	}

	return &GenericPacket{
		FromID:     r.str("from_id"),
		ToID:       normalizeID(r.str("to_id")),
		PacketType: packetType,
		Payload:    payload.scalars(),
		RSSI:       r.intPtr("rssi"),
		SNR:        r.floatPtr("snr"),
		HopCount:   hopCount(r),
		Channel:    r.intOr("channel", 0),
		Timestamp:  eventTime(r),
	}
}

// hopCount derives the hop count for a record. An explicit non-negative
// hop_count wins; otherwise it is computed from the hop_start/hop_limit
// pair. Anything else is unknown, never zero: a fabricated zero would
// silently mint direct-neighbor links.
func hopCount(r Raw) model.HopCount {
	if p := r.intPtr("hop_count"); p != nil && *p >= 0 {
		return model.HopCount(*p)
	}
	start := r.intOr("hop_start", 0)
	limit := r.intOr("hop_limit", 0)
	return model.HopCountFrom(start, limit)
}

// eventTime resolves a record's timestamp, defaulting to now when the
// record carries none.
func eventTime(r Raw) int64 {
	if ms := r.timestampMs("timestamp"); ms != 0 {
		return ms
	}
	return timestamp.Now()
}
