package store

import (
	"context"
	"database/sql"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
)

func nullHop(h model.HopCount) sql.NullInt64 {
	if !h.Known() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(h), Valid: true}
}

func hopFrom(v sql.NullInt64) model.HopCount {
	if !v.Valid {
		return model.HopCountUnknown
	}
	return model.HopCount(v.Int64)
}

// UpsertNode writes the node's current record and appends a history row
// in one transaction, then refreshes the session's node count. The
// caller passes the already-merged record; the row is replaced whole.
func (s *Store) UpsertNode(ctx context.Context, sessionID int64, n model.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapTransient(err, "Store", "UpsertNode", "begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO nodes (
			id, session_id, short_name, long_name, hardware_model, role,
			is_licensed, battery_level, voltage, channel_util, air_util_tx,
			uptime_seconds, temperature, humidity, pressure, rssi, snr,
			hop_count, latitude, longitude, altitude, last_heard, signal_quality
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, sessionID, n.ShortName, n.LongName, n.HardwareModel, string(n.Role),
		n.IsLicensed, nullInt(n.BatteryLevel), nullFloat(n.Voltage), nullFloat(n.ChannelUtil),
		nullFloat(n.AirUtilTx), nullInt64(n.UptimeSeconds), nullFloat(n.Temperature),
		nullFloat(n.Humidity), nullFloat(n.Pressure), nullInt(n.RSSI), nullFloat(n.SNR),
		nullHop(n.HopCount), nullFloat(n.Latitude), nullFloat(n.Longitude),
		nullFloat(n.Altitude), n.LastHeard, string(n.SignalQuality),
	)
	if err != nil {
		return errors.WrapTransient(err, "Store", "UpsertNode", "upsert node row")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes_history (
			node_id, session_id, short_name, battery_level, voltage,
			channel_util, air_util_tx, uptime_seconds, temperature, humidity,
			pressure, rssi, snr, hop_count, latitude, longitude, altitude, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, sessionID, n.ShortName, nullInt(n.BatteryLevel), nullFloat(n.Voltage),
		nullFloat(n.ChannelUtil), nullFloat(n.AirUtilTx), nullInt64(n.UptimeSeconds),
		nullFloat(n.Temperature), nullFloat(n.Humidity), nullFloat(n.Pressure),
		nullInt(n.RSSI), nullFloat(n.SNR), nullHop(n.HopCount), nullFloat(n.Latitude),
		nullFloat(n.Longitude), nullFloat(n.Altitude), n.LastHeard,
	)
	if err != nil {
		return errors.WrapTransient(err, "Store", "UpsertNode", "append history row")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions
		SET node_count = (SELECT COUNT(*) FROM nodes WHERE session_id = ?)
		WHERE id = ?`,
		sessionID, sessionID,
	)
	if err != nil {
		return errors.WrapTransient(err, "Store", "UpsertNode", "refresh node count")
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapTransient(err, "Store", "UpsertNode", "commit")
	}
	return nil
}

const nodeColumns = `id, short_name, long_name, hardware_model, role,
	is_licensed, battery_level, voltage, channel_util, air_util_tx,
	uptime_seconds, temperature, humidity, pressure, rssi, snr,
	hop_count, latitude, longitude, altitude, last_heard, signal_quality`

func scanNode(rows *sql.Rows) (model.Node, error) {
	var (
		n                             model.Node
		role, quality                 string
		longName, hardware            sql.NullString
		battery, uptime, rssi, hops   sql.NullInt64
		voltage, chanUtil, airUtil    sql.NullFloat64
		temp, humidity, pressure, snr sql.NullFloat64
		lat, lon, alt                 sql.NullFloat64
	)

	err := rows.Scan(
		&n.ID, &n.ShortName, &longName, &hardware, &role,
		&n.IsLicensed, &battery, &voltage, &chanUtil, &airUtil,
		&uptime, &temp, &humidity, &pressure, &rssi, &snr,
		&hops, &lat, &lon, &alt, &n.LastHeard, &quality,
	)
	if err != nil {
		return model.Node{}, err
	}

	n.LongName = longName.String
	n.HardwareModel = hardware.String
	n.Role = model.Role(role)
	n.SignalQuality = model.SignalQuality(quality)
	n.BatteryLevel = intPtr(battery)
	n.Voltage = floatPtr(voltage)
	n.ChannelUtil = floatPtr(chanUtil)
	n.AirUtilTx = floatPtr(airUtil)
	n.UptimeSeconds = int64Ptr(uptime)
	n.Temperature = floatPtr(temp)
	n.Humidity = floatPtr(humidity)
	n.Pressure = floatPtr(pressure)
	n.RSSI = intPtr(rssi)
	n.SNR = floatPtr(snr)
	n.HopCount = hopFrom(hops)
	n.Latitude = floatPtr(lat)
	n.Longitude = floatPtr(lon)
	n.Altitude = floatPtr(alt)
	return n, nil
}

// SessionNodes returns every node recorded for the session, most
// recently heard first.
func (s *Store) SessionNodes(ctx context.Context, sessionID int64) ([]model.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE session_id = ?
		ORDER BY last_heard DESC`,
		sessionID,
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "SessionNodes", "query nodes")
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, errors.WrapTransient(err, "Store", "SessionNodes", "scan node row")
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ActiveNodes returns nodes heard within the last sinceSeconds in the
// session, most recently heard first.
func (s *Store) ActiveNodes(ctx context.Context, sessionID int64, sinceSeconds int) ([]model.Node, error) {
	cutoff := model.NowMs() - int64(sinceSeconds)*1000

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE session_id = ? AND last_heard > ?
		ORDER BY last_heard DESC`,
		sessionID, cutoff,
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "ActiveNodes", "query nodes")
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, errors.WrapTransient(err, "Store", "ActiveNodes", "scan node row")
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// TelemetrySample is one historical metrics reading for a node.
type TelemetrySample struct {
	BatteryLevel  *int     `json:"battery_level,omitempty"`
	Voltage       *float64 `json:"voltage,omitempty"`
	ChannelUtil   *float64 `json:"channel_utilization,omitempty"`
	AirUtilTx     *float64 `json:"air_util_tx,omitempty"`
	UptimeSeconds *int64   `json:"uptime_seconds,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
	Pressure      *float64 `json:"pressure,omitempty"`
	RSSI          *int     `json:"rssi,omitempty"`
	SNR           *float64 `json:"snr,omitempty"`
	Timestamp     int64    `json:"timestamp"`
}

// TelemetryHistory returns up to limit history samples for the node
// within the last windowSeconds, newest first.
func (s *Store) TelemetryHistory(ctx context.Context, sessionID int64, nodeID string, windowSeconds, limit int) ([]TelemetrySample, error) {
	cutoff := model.NowMs() - int64(windowSeconds)*1000

	rows, err := s.db.QueryContext(ctx, `
		SELECT battery_level, voltage, channel_util, air_util_tx,
		       uptime_seconds, temperature, humidity, pressure, rssi, snr, timestamp
		FROM nodes_history
		WHERE session_id = ? AND node_id = ? AND timestamp > ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`,
		sessionID, nodeID, cutoff, limit,
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "TelemetryHistory", "query history")
	}
	defer rows.Close()

	var samples []TelemetrySample
	for rows.Next() {
		var (
			ts                            TelemetrySample
			battery, uptime, rssi         sql.NullInt64
			voltage, chanUtil, airUtil    sql.NullFloat64
			temp, humidity, pressure, snr sql.NullFloat64
		)
		err := rows.Scan(&battery, &voltage, &chanUtil, &airUtil,
			&uptime, &temp, &humidity, &pressure, &rssi, &snr, &ts.Timestamp)
		if err != nil {
			return nil, errors.WrapTransient(err, "Store", "TelemetryHistory", "scan history row")
		}
		ts.BatteryLevel = intPtr(battery)
		ts.Voltage = floatPtr(voltage)
		ts.ChannelUtil = floatPtr(chanUtil)
		ts.AirUtilTx = floatPtr(airUtil)
		ts.UptimeSeconds = int64Ptr(uptime)
		ts.Temperature = floatPtr(temp)
		ts.Humidity = floatPtr(humidity)
		ts.Pressure = floatPtr(pressure)
		ts.RSSI = intPtr(rssi)
		ts.SNR = floatPtr(snr)
		samples = append(samples, ts)
	}
	return samples, rows.Err()
}
