package events

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const createLedgerEventsTable = `CREATE TABLE IF NOT EXISTS ledger_events (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	dedupe_key TEXT,
	published BOOLEAN NOT NULL DEFAULT FALSE,
	created_at DATETIME NOT NULL,
	CONSTRAINT ux_ledger_events_user_dedupe UNIQUE (user_id, dedupe_key)
)`

func newTestOutbox(t *testing.T) (*Outbox, *gorm.DB, *snowflake.Node) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := conn.Exec(createLedgerEventsTable).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewOutbox(conn, node), conn, node
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := conn.Raw(`SELECT COUNT(1) FROM ledger_events`).Scan(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return count
}

func TestPublishStoresEvent(t *testing.T) {
	outbox, conn, node := newTestOutbox(t)
	userID := node.Generate()

	err := outbox.Publish(context.Background(), Event{
		UserID: userID,
		Type:   EventTransactionCreated,
		Payload: TransactionPayload{
			TransactionID: "1",
			PropertyID:    "2",
			PointsChange:  10,
			Amount:        10,
		}.ToMap(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n := countRows(t, conn); n != 1 {
		t.Fatalf("expected 1 event row, got %d", n)
	}

	var published bool
	if err := conn.Raw(`SELECT published FROM ledger_events`).Scan(&published).Error; err != nil {
		t.Fatalf("read published: %v", err)
	}
	if published {
		t.Fatal("expected event to start unpublished")
	}
}

func TestPublishDeduplicates(t *testing.T) {
	outbox, conn, node := newTestOutbox(t)
	userID := node.Generate()
	event := Event{
		UserID:    userID,
		Type:      EventPropertyDeleted,
		Payload:   PropertyPayload{PropertyID: "2"}.ToMap(),
		DedupeKey: "property.deleted:2",
	}

	for i := 0; i < 2; i++ {
		if err := outbox.Publish(context.Background(), event); err != nil {
			t.Fatalf("publish attempt %d: %v", i+1, err)
		}
	}
	if n := countRows(t, conn); n != 1 {
		t.Fatalf("expected duplicate to be dropped, got %d rows", n)
	}

	// A different key for the same user is a distinct event.
	event.DedupeKey = "property.deleted:3"
	if err := outbox.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish distinct key: %v", err)
	}
	if n := countRows(t, conn); n != 2 {
		t.Fatalf("expected 2 rows after distinct key, got %d", n)
	}
}

func TestPublishValidation(t *testing.T) {
	outbox, _, node := newTestOutbox(t)

	if err := outbox.Publish(context.Background(), Event{Type: EventPropertyCreated}); err == nil {
		t.Fatal("expected error for missing user id")
	}
	if err := outbox.Publish(context.Background(), Event{UserID: node.Generate(), Type: "  "}); err == nil {
		t.Fatal("expected error for blank event type")
	}
	if err := outbox.PublishTx(context.Background(), nil, Event{UserID: node.Generate(), Type: EventPropertyCreated}); err == nil {
		t.Fatal("expected error for nil transaction")
	}
}
