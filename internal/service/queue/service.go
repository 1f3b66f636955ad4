package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jmehdipour/mail-gateway/internal/attachment"
	"github.com/jmehdipour/mail-gateway/internal/broker"
	"github.com/jmehdipour/mail-gateway/internal/model"
	"github.com/jmehdipour/mail-gateway/internal/repository"
	"github.com/jmehdipour/mail-gateway/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	ErrUnknownTemplate  = errors.New("unknown template")
	ErrUnknownEmailType = errors.New("unknown email type")
	ErrNoRecipients     = errors.New("no recipients")
	ErrPublish          = errors.New("publish failed")
)

type TemplateChecker interface {
	Exists(name string) bool
}

type Upload struct {
	Name    string
	Content io.Reader
}

type Request struct {
	EmailType     string
	Subject       string
	Template      string
	Data          map[string]any
	PriorityLevel int
	// Explicit recipients; a nil field falls back to the email type defaults.
	To, Cc, Bcc []string
	Files       []Upload
}

type Result struct {
	ID          string
	Tier        model.Tier
	Attachments int
}

// Service persists a task with its attachments, then publishes it to its tier queue.
type Service struct {
	db          *sqlx.DB
	emails      repository.EmailQueueRepository
	attachments repository.AttachmentsRepository
	types       repository.EmailTypesRepository
	store       *attachment.Store
	templates   TemplateChecker
	pub         broker.Publisher
	log         *zap.Logger
}

func New(
	db *sqlx.DB,
	emails repository.EmailQueueRepository,
	attachments repository.AttachmentsRepository,
	types repository.EmailTypesRepository,
	store *attachment.Store,
	templates TemplateChecker,
	pub broker.Publisher,
	log *zap.Logger,
) *Service {
	return &Service{
		db:          db,
		emails:      emails,
		attachments: attachments,
		types:       types,
		store:       store,
		templates:   templates,
		pub:         pub,
		log:         log,
	}
}

// Enqueue returns the task id. When publishing fails the row stays pending and
// the error wraps ErrPublish alongside a populated Result.
func (s *Service) Enqueue(ctx context.Context, req Request) (Result, error) {
	req.Template = strings.TrimSpace(req.Template)
	if req.Template == "" || !s.templates.Exists(req.Template) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, req.Template)
	}

	to, cc, bcc, err := s.recipients(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if req.Data == nil {
		req.Data = map[string]any{}
	}
	data, err := json.Marshal(req.Data)
	if err != nil {
		return Result{}, fmt.Errorf("marshal email_data: %w", err)
	}

	id := util.New()
	tier := model.TierFromPriority(req.PriorityLevel)

	var recs []model.AttachmentRecord
	for _, f := range req.Files {
		rec, err := s.store.Save(id, f.Name, f.Content)
		if err != nil {
			_ = s.store.Discard(id)
			return Result{}, fmt.Errorf("save attachment %q: %w", f.Name, err)
		}
		recs = append(recs, rec)
	}

	row := model.QueuedEmail{
		ID:            id,
		EmailType:     req.EmailType,
		Subject:       req.Subject,
		Template:      req.Template,
		Data:          data,
		ToAddress:     addressJSON(to),
		CcAddresses:   addressJSON(cc),
		BccAddresses:  addressJSON(bcc),
		PriorityLevel: req.PriorityLevel,
	}
	if err := s.persist(ctx, row, recs); err != nil {
		_ = s.store.Discard(id)
		return Result{}, err
	}

	res := Result{ID: id, Tier: tier, Attachments: len(recs)}

	body, err := json.Marshal(model.DeliveryTask{
		ID:        model.TaskID(id),
		EmailType: model.Text(req.EmailType),
		Template:  req.Template,
		Subject:   model.Text(req.Subject),
		To:        to,
		Cc:        cc,
		Bcc:       bcc,
		Data:      data,
	})
	if err != nil {
		return res, fmt.Errorf("marshal task: %w", err)
	}
	if err := s.pub.Publish(ctx, tier, id, body); err != nil {
		s.log.Error("task stored but not published",
			zap.String("severity", "critical"),
			zap.String("task_id", id),
			zap.String("tier", tier.String()),
			zap.Error(err),
		)
		return res, fmt.Errorf("%w: %v", ErrPublish, err)
	}

	s.log.Info("task enqueued", zap.String("task_id", id), zap.String("tier", tier.String()), zap.Int("attachments", len(recs)))
	return res, nil
}

func (s *Service) persist(ctx context.Context, row model.QueuedEmail, recs []model.AttachmentRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.emails.InsertPending(ctx, tx, row); err != nil {
		return fmt.Errorf("insert email_queues: %w", err)
	}
	for _, rec := range recs {
		if err := s.attachments.Insert(ctx, tx, rec); err != nil {
			return fmt.Errorf("insert email_attachments: %w", err)
		}
	}
	return tx.Commit()
}

// recipients prefers explicit lists per field and fills the rest from the email type row.
func (s *Service) recipients(ctx context.Context, req Request) (to, cc, bcc model.AddressSet, err error) {
	to, cc, bcc = listSet(req.To), listSet(req.Cc), listSet(req.Bcc)
	if req.To != nil && req.Cc != nil && req.Bcc != nil {
		if len(req.To)+len(req.Cc)+len(req.Bcc) == 0 {
			return to, cc, bcc, ErrNoRecipients
		}
		return to, cc, bcc, nil
	}

	et, err := s.types.Get(ctx, req.EmailType)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if len(req.To) == 0 {
			return to, cc, bcc, fmt.Errorf("%w: %q", ErrUnknownEmailType, req.EmailType)
		}
		return to, cc, bcc, nil
	case err != nil:
		return to, cc, bcc, fmt.Errorf("load email type: %w", err)
	}

	if req.To == nil {
		to = model.ParseAddressValue(et.ToAddress)
	}
	if req.Cc == nil {
		cc = model.ParseAddressValue(et.CcAddresses)
	}
	if req.Bcc == nil {
		bcc = model.ParseAddressValue(et.BccAddresses)
	}
	if len(to.List())+len(cc.List())+len(bcc.List()) == 0 {
		return to, cc, bcc, ErrNoRecipients
	}
	return to, cc, bcc, nil
}

func listSet(l []string) model.AddressSet {
	if l == nil {
		return model.NoAddresses()
	}
	return model.ManyAddresses(l...)
}

func addressJSON(a model.AddressSet) []byte {
	if a.IsAbsent() {
		return nil
	}
	b, _ := json.Marshal(a)
	return b
}
