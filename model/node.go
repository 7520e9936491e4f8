package model

// Node is the best-known record for a mesh participant. Pointer fields
// distinguish "never observed" (nil) from an observed value, which is what
// makes merge semantics safe: a partial update can never null out a field
// it does not mention.
type Node struct {
	ID            string        `json:"id"`
	ShortName     string        `json:"short_name"`
	LongName      string        `json:"long_name,omitempty"`
	HardwareModel string        `json:"hardware_model,omitempty"`
	Role          Role          `json:"role"`
	IsLicensed    bool          `json:"is_licensed"`
	BatteryLevel  *int          `json:"battery_level,omitempty"`
	Voltage       *float64      `json:"voltage,omitempty"`
	ChannelUtil   *float64      `json:"channel_utilization,omitempty"`
	AirUtilTx     *float64      `json:"air_util_tx,omitempty"`
	UptimeSeconds *int64        `json:"uptime_seconds,omitempty"`
	Temperature   *float64      `json:"temperature,omitempty"`
	Humidity      *float64      `json:"humidity,omitempty"`
	Pressure      *float64      `json:"pressure,omitempty"`
	RSSI          *int          `json:"rssi,omitempty"`
	SNR           *float64      `json:"snr,omitempty"`
	HopCount      HopCount      `json:"hop_count"`
	Latitude      *float64      `json:"latitude,omitempty"`
	Longitude     *float64      `json:"longitude,omitempty"`
	Altitude      *float64      `json:"altitude,omitempty"`
	LastHeard     int64         `json:"last_heard"`
	SignalQuality SignalQuality `json:"signal_quality,omitempty"`

	// IsActive is derived from LastHeard against the freshness window at
	// snapshot time; it is never stored or merged.
	IsActive bool `json:"is_active"`
}

// NewNode creates a node record with a placeholder name and unknown hop
// accounting.
func NewNode(id string) Node {
	return Node{
		ID:        id,
		ShortName: PlaceholderName(id),
		Role:      RoleClient,
		HopCount:  HopCountUnknown,
	}
}

// Merge folds the non-nil fields of update into n, returning the union.
// Fields absent from update keep their previous value; LastHeard advances
// monotonically. Signal quality is recomputed only when the update carries
// an RSSI observation.
func (n Node) Merge(update Node) Node {
	if update.ShortName != "" && update.ShortName != PlaceholderName(n.ID) {
		n.ShortName = update.ShortName
	}
	if n.ShortName == "" {
		n.ShortName = PlaceholderName(n.ID)
	}
	if update.LongName != "" {
		n.LongName = update.LongName
	}
	if update.HardwareModel != "" {
		n.HardwareModel = update.HardwareModel
	}
	if update.Role != "" {
		n.Role = update.Role
	}
	if update.IsLicensed {
		n.IsLicensed = true
	}
	if update.BatteryLevel != nil {
		n.BatteryLevel = update.BatteryLevel
	}
	if update.Voltage != nil {
		n.Voltage = update.Voltage
	}
	if update.ChannelUtil != nil {
		n.ChannelUtil = update.ChannelUtil
	}
	if update.AirUtilTx != nil {
		n.AirUtilTx = update.AirUtilTx
	}
	if update.UptimeSeconds != nil {
		n.UptimeSeconds = update.UptimeSeconds
	}
	if update.Temperature != nil {
		n.Temperature = update.Temperature
	}
	if update.Humidity != nil {
		n.Humidity = update.Humidity
	}
	if update.Pressure != nil {
		n.Pressure = update.Pressure
	}
	if update.RSSI != nil {
		n.RSSI = update.RSSI
		n.SignalQuality = QualityFromRSSI(*update.RSSI)
	}
	if update.SNR != nil {
		n.SNR = update.SNR
	}
	if update.HopCount.Known() {
		n.HopCount = update.HopCount
	}
	if update.Latitude != nil {
		n.Latitude = update.Latitude
	}
	if update.Longitude != nil {
		n.Longitude = update.Longitude
	}
	if update.Altitude != nil {
		n.Altitude = update.Altitude
	}
	if update.LastHeard > n.LastHeard {
		n.LastHeard = update.LastHeard
	}
	return n
}
