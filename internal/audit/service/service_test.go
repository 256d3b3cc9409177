package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/jimmy-lan/habits-restapi/internal/audit/domain"
	auditrepository "github.com/jimmy-lan/habits-restapi/internal/audit/repository"
	"github.com/jimmy-lan/habits-restapi/internal/clock"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := conn.AutoMigrate(&auditdomain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.SystemClock{},
		Repo:  auditrepository.Provide(),
	})
	return svc, conn, node
}

func TestRecordWritesEntry(t *testing.T) {
	svc, conn, node := newTestService(t)
	userID := node.Generate()
	targetID := "42"

	err := svc.Record(context.Background(), nil, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeUser,
		UserID:     &userID,
		Action:     "property.delete",
		TargetType: "property",
		TargetID:   &targetID,
		Metadata:   map[string]any{"name": "Reading"},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	logs, err := auditrepository.Provide().List(context.Background(), conn, auditdomain.ListFilter{
		UserID: userID,
		Action: "property.delete",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(logs))
	}
	entry := logs[0]
	if entry.ActorType != string(auditdomain.ActorTypeUser) {
		t.Fatalf("unexpected actor type %q", entry.ActorType)
	}
	if entry.TargetID == nil || *entry.TargetID != targetID {
		t.Fatalf("unexpected target id %v", entry.TargetID)
	}
	if entry.Metadata["name"] != "Reading" {
		t.Fatalf("unexpected metadata %v", entry.Metadata)
	}
}

func TestRecordDefaultsActorToSystem(t *testing.T) {
	svc, conn, _ := newTestService(t)

	err := svc.Record(context.Background(), nil, auditdomain.Entry{
		Action:     "quota.reset_deleted_counters",
		TargetType: "quota",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	logs, err := auditrepository.Provide().List(context.Background(), conn, auditdomain.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 || logs[0].ActorType != string(auditdomain.ActorTypeSystem) {
		t.Fatalf("expected system actor, got %+v", logs)
	}
}

func TestRecordRejectsIncompleteEntry(t *testing.T) {
	svc, _, _ := newTestService(t)

	if err := svc.Record(context.Background(), nil, auditdomain.Entry{TargetType: "property"}); err == nil {
		t.Fatal("expected error for missing action")
	}
	if err := svc.Record(context.Background(), nil, auditdomain.Entry{Action: "property.delete"}); err == nil {
		t.Fatal("expected error for missing target type")
	}
}
