package queue

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/mail-gateway/internal/attachment"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/jmehdipour/mail-gateway/internal/repository"
	"github.com/jmehdipour/mail-gateway/internal/templates"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type published struct {
	tier model.Tier
	key  string
	body []byte
}

type fakePublisher struct {
	err  error
	msgs []published
}

func (f *fakePublisher) Publish(_ context.Context, tier model.Tier, key string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{tier, key, body})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fixture struct {
	svc  *Service
	mock sqlmock.Sqlmock
	pub  *fakePublisher
	fs   afero.Fs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = raw.Close() })
	db := sqlx.NewDb(raw, "mysql")

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "templates/default/welcome.html", []byte(`Hi {{.name}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	pub := &fakePublisher{}
	svc := New(
		db,
		repository.NewEmailQueueRepository(db),
		repository.NewAttachmentsRepository(db),
		repository.NewEmailTypesRepository(db),
		attachment.NewStore(fs, "uploads"),
		templates.NewRenderer(fs, "templates/user", "templates/default", ".html"),
		pub,
		zap.NewNop(),
	)
	return &fixture{svc: svc, mock: mock, pub: pub, fs: fs}
}

var typeCols = []string{"type", "to_address", "cc_addresses", "bcc_addresses"}

func TestEnqueueWithAttachments(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(regexp.QuoteMeta("FROM email_types")).WithArgs("welcome").
		WillReturnRows(sqlmock.NewRows(typeCols).AddRow("welcome", []byte(`["a@x.com"]`), nil, []byte(`["audit@x.com"]`)))
	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_queues")).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_attachments")).WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_attachments")).WillReturnResult(sqlmock.NewResult(2, 1))
	f.mock.ExpectCommit()

	res, err := f.svc.Enqueue(context.Background(), Request{
		EmailType:     "welcome",
		Subject:       "Hi",
		Template:      "welcome",
		Data:          map[string]any{"name": "Ann"},
		PriorityLevel: 1,
		Files: []Upload{
			{Name: "a.pdf", Content: strings.NewReader("one")},
			{Name: "a.pdf", Content: strings.NewReader("two")},
		},
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if res.ID == "" || res.Tier != model.TierHigh || res.Attachments != 2 {
		t.Errorf("Enqueue() = %+v", res)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}

	if len(f.pub.msgs) != 1 {
		t.Fatalf("published = %d, want 1", len(f.pub.msgs))
	}
	p := f.pub.msgs[0]
	if p.tier != model.TierHigh || p.key != res.ID {
		t.Errorf("published tier=%v key=%q", p.tier, p.key)
	}

	task, err := model.ParseTask(p.body)
	if err != nil {
		t.Fatalf("published body does not parse: %v", err)
	}
	if task.ID.String() != res.ID || task.Template != "welcome" {
		t.Errorf("task = %+v", task)
	}
	if got := task.To.List(); len(got) != 1 || got[0] != "a@x.com" {
		t.Errorf("to = %v", got)
	}
	if !task.Cc.IsAbsent() || task.Bcc.List()[0] != "audit@x.com" {
		t.Errorf("cc = %v bcc = %v", task.Cc.List(), task.Bcc.List())
	}
	data, err := task.Payload()
	if err != nil || data["name"] != "Ann" {
		t.Errorf("payload = %v, %v", data, err)
	}

	for _, name := range []string{"a.pdf", "a 1.pdf"} {
		if ok, _ := afero.Exists(f.fs, "uploads/"+res.ID+"/"+name); !ok {
			t.Errorf("upload %s not stored", name)
		}
	}
}

func TestEnqueueTierFromPriority(t *testing.T) {
	tests := []struct {
		level int
		want  model.Tier
	}{
		{1, model.TierHigh},
		{2, model.TierNormal},
		{3, model.TierLow},
		{0, model.TierLow},
	}

	for _, tt := range tests {
		f := newFixture(t)
		f.mock.ExpectBegin()
		f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_queues")).WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		res, err := f.svc.Enqueue(context.Background(), Request{
			EmailType: "adhoc", Template: "welcome", PriorityLevel: tt.level,
			To: []string{"a@x.com"}, Cc: []string{}, Bcc: []string{},
		})
		if err != nil {
			t.Fatalf("level %d: Enqueue() error = %v", tt.level, err)
		}
		if res.Tier != tt.want || f.pub.msgs[0].tier != tt.want {
			t.Errorf("level %d: tier = %v, want %v", tt.level, res.Tier, tt.want)
		}
	}
}

func TestEnqueueRejections(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		setup   func(sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name:    "unknown template",
			req:     Request{EmailType: "welcome", Template: "missing", To: []string{"a@x.com"}},
			wantErr: ErrUnknownTemplate,
		},
		{
			name: "unknown email type without recipients",
			req:  Request{EmailType: "nope", Template: "welcome"},
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("FROM email_types")).WillReturnRows(sqlmock.NewRows(typeCols))
			},
			wantErr: ErrUnknownEmailType,
		},
		{
			name:    "explicitly empty recipients",
			req:     Request{EmailType: "x", Template: "welcome", To: []string{}, Cc: []string{}, Bcc: []string{}},
			wantErr: ErrNoRecipients,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f.mock)
			}
			_, err := f.svc.Enqueue(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Enqueue() error = %v, want %v", err, tt.wantErr)
			}
			if len(f.pub.msgs) != 0 {
				t.Error("nothing may be published on rejection")
			}
		})
	}
}

func TestEnqueueRollbackDiscardsUploads(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_queues")).WillReturnError(errors.New("db down"))
	f.mock.ExpectRollback()

	_, err := f.svc.Enqueue(context.Background(), Request{
		EmailType: "x", Template: "welcome", To: []string{"a@x.com"}, Cc: []string{}, Bcc: []string{},
		Files: []Upload{{Name: "a.pdf", Content: strings.NewReader("x")}},
	})
	if err == nil {
		t.Fatal("Enqueue() error = nil")
	}
	entries, _ := afero.ReadDir(f.fs, "uploads")
	if len(entries) != 0 {
		t.Errorf("uploads left behind: %d", len(entries))
	}
	if len(f.pub.msgs) != 0 {
		t.Error("published despite rollback")
	}
}

func TestEnqueuePublishFailureKeepsRow(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker unreachable")
	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_queues")).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	res, err := f.svc.Enqueue(context.Background(), Request{
		EmailType: "x", Template: "welcome", To: []string{"a@x.com"}, Cc: []string{}, Bcc: []string{},
	})
	if !errors.Is(err, ErrPublish) {
		t.Fatalf("Enqueue() error = %v, want ErrPublish", err)
	}
	if res.ID == "" {
		t.Error("Result must carry the stored id")
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
