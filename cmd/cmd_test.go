package cmd

import (
	"context"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/mail-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
)

func TestSeedEmailTypes(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer raw.Close()
	dbx := sqlx.NewDb(raw, "mysql")

	mock.ExpectBegin()
	for _, st := range demoEmailTypes {
		mock.ExpectExec("INSERT INTO email_types").
			WithArgs(st.name, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := seedEmailTypes(context.Background(), dbx, repository.NewEmailTypesRepository(dbx)); err != nil {
		t.Fatalf("seedEmailTypes() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAddressColumn(t *testing.T) {
	if b, err := addressColumn(nil); b != nil || err != nil {
		t.Errorf("addressColumn(nil) = (%s, %v), want (nil, nil)", b, err)
	}
	b, err := addressColumn([]string{"a@x.com"})
	if err != nil || string(b) != `["a@x.com"]` {
		t.Errorf("addressColumn() = (%s, %v)", b, err)
	}
}

func TestEnqueueRequest(t *testing.T) {
	err := enqueueCmd.ParseFlags([]string{
		"--template", "welcome",
		"--subject", "Hi",
		"--priority", "1",
		"--to", "a@x.com,b@y.com",
		"--bcc", "",
		"--data", `{"name":"Ann"}`,
	})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	req, err := enqueueRequest(enqueueCmd)
	if err != nil {
		t.Fatalf("enqueueRequest() error = %v", err)
	}
	if req.Template != "welcome" || req.Subject != "Hi" || req.PriorityLevel != 1 {
		t.Errorf("enqueueRequest() = %+v", req)
	}
	if !reflect.DeepEqual(req.To, []string{"a@x.com", "b@y.com"}) {
		t.Errorf("To = %v", req.To)
	}
	if req.Cc != nil {
		t.Errorf("Cc = %v, want nil so the type default applies", req.Cc)
	}
	if req.Bcc == nil || len(req.Bcc) != 0 {
		t.Errorf("Bcc = %#v, want explicit empty list", req.Bcc)
	}
	if req.Data["name"] != "Ann" {
		t.Errorf("Data = %v", req.Data)
	}

	enqueueFlags.data = "[1]"
	defer func() { enqueueFlags.data = "{}" }()
	if _, err := enqueueRequest(enqueueCmd); err == nil {
		t.Error("enqueueRequest() with array data error = nil")
	}
}
