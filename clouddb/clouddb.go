// Package clouddb persists decoded Pandar40 point clouds to SQLite for
// offline inspection. It is a sidecar to the decode core: the decoder appends
// to a PointCloud, and RecordCloud writes the batch under a session.
package clouddb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/pandar40/pandar"
)

type CloudDB struct {
	*sql.DB
}

// schema.sql defines the session and point tables for decoded cloud storage.
//
//go:embed schema.sql
var schemaSQL string

func NewCloudDB(path string) (*CloudDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err = db.Exec(schemaSQL); err != nil {
		return nil, err
	}

	log.Println("initialized point cloud database schema")

	return &CloudDB{db}, nil
}

// StartSession creates a new decode session record and returns its ID.
func (cdb *CloudDB) StartSession(notes string) (string, error) {
	sessionID := uuid.NewString()

	query := `
		INSERT INTO decode_sessions (id, session_notes)
		VALUES (?, ?)
	`
	if _, err := cdb.Exec(query, sessionID, notes); err != nil {
		return "", fmt.Errorf("failed to start decode session: %v", err)
	}

	return sessionID, nil
}

// RecordCloud stores every point of one decoded packet under a session.
// The batch is written in a single transaction so a failure leaves no
// partial packet in the store.
func (cdb *CloudDB) RecordCloud(sessionID string, revolution uint16, deviceTimestamp uint32, cloud *pandar.PointCloud) error {
	tx, err := cdb.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO cloud_points (session_id, revolution, device_timestamp, x, y, z, intensity, ring)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare point insert: %v", err)
	}
	defer stmt.Close()

	for _, p := range cloud.Points {
		if _, err := stmt.Exec(sessionID, revolution, deviceTimestamp, p.X, p.Y, p.Z, p.Intensity, p.Ring); err != nil {
			return fmt.Errorf("failed to insert point: %v", err)
		}
	}

	update := `
		UPDATE decode_sessions
		SET packet_count = packet_count + 1,
		    point_count = point_count + ?
		WHERE id = ?
	`
	if _, err := tx.Exec(update, cloud.Len(), sessionID); err != nil {
		return fmt.Errorf("failed to update session counters: %v", err)
	}

	return tx.Commit()
}

// EndSession closes a decode session.
func (cdb *CloudDB) EndSession(sessionID string) error {
	query := `
		UPDATE decode_sessions
		SET end_timestamp = UNIXEPOCH('subsec')
		WHERE id = ?
	`
	if _, err := cdb.Exec(query, sessionID); err != nil {
		return fmt.Errorf("failed to end decode session: %v", err)
	}
	return nil
}

// Session represents a decode session row.
type Session struct {
	ID             string   `json:"id"`
	StartTimestamp float64  `json:"start_timestamp"`
	EndTimestamp   *float64 `json:"end_timestamp,omitempty"`
	PacketCount    int      `json:"packet_count"`
	PointCount     int      `json:"point_count"`
	SessionNotes   string   `json:"session_notes"`
}

// GetSession retrieves a decode session by ID.
func (cdb *CloudDB) GetSession(sessionID string) (*Session, error) {
	query := `
		SELECT id, start_timestamp, end_timestamp, packet_count, point_count, session_notes
		FROM decode_sessions
		WHERE id = ?
	`

	var s Session
	err := cdb.QueryRow(query, sessionID).Scan(
		&s.ID, &s.StartTimestamp, &s.EndTimestamp, &s.PacketCount, &s.PointCount, &s.SessionNotes)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %v", sessionID, err)
	}
	return &s, nil
}

// RingCounts returns the number of stored points per ring for a session.
func (cdb *CloudDB) RingCounts(sessionID string) (map[int]int, error) {
	query := `
		SELECT ring, COUNT(*)
		FROM cloud_points
		WHERE session_id = ?
		GROUP BY ring
	`

	rows, err := cdb.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ring counts: %v", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var ring, count int
		if err := rows.Scan(&ring, &count); err != nil {
			return nil, fmt.Errorf("failed to scan ring count row: %v", err)
		}
		counts[ring] = count
	}
	return counts, rows.Err()
}
