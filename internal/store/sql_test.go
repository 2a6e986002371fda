package store

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/haasonsaas/agentcore/pkg/models"
)

func newMockStore(t *testing.T) (*sqlStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &sqlStore{db: db, ph: postgresPlaceholder, dialect: "postgres"}, mock
}

func TestSQLStoreCreateChatExecutesInsert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO chats`).WithArgs(
		"user-1", "chat-1", "", "hi", sqlmock.AnyArg(), false, false, "", "", sqlmock.AnyArg(), sqlmock.AnyArg(),
	).WillReturnResult(sqlmock.NewResult(1, 1))

	chat := &models.Chat{ChatID: "chat-1", Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}}}
	if err := s.CreateChat(context.Background(), "user-1", chat); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreGetChatNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT json_content FROM chats`).WithArgs("user-1", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"json_content"}))

	_, err := s.GetChat(context.Background(), "user-1", "missing")
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLStoreSaveChatNoRowsAffectedIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE chats`).WillReturnResult(sqlmock.NewResult(0, 0))

	chat := &models.Chat{ChatID: "chat-1"}
	if err := s.SaveChat(context.Background(), "user-1", chat); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSplitStatementsSkipsBlank(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (x int);\n\nCREATE TABLE b (y int);\n")
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %v", len(stmts), stmts)
	}
}

func TestPostgresPlaceholderFormat(t *testing.T) {
	if got := postgresPlaceholder(3); got != "$3" {
		t.Fatalf("postgresPlaceholder(3) = %q, want $3", got)
	}
	if got := sqlitePlaceholder(3); got != "?" {
		t.Fatalf("sqlitePlaceholder(3) = %q, want ?", got)
	}
}
