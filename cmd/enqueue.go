package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jmehdipour/mail-gateway/internal/app"
	"github.com/jmehdipour/mail-gateway/internal/attachment"
	"github.com/jmehdipour/mail-gateway/internal/config"
	"github.com/jmehdipour/mail-gateway/internal/logger"
	"github.com/jmehdipour/mail-gateway/internal/repository"
	"github.com/jmehdipour/mail-gateway/internal/service/queue"
	"github.com/jmehdipour/mail-gateway/internal/templates"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var enqueueFlags struct {
	emailType string
	subject   string
	template  string
	data      string
	priority  int
	to        []string
	cc        []string
	bcc       []string
	files     []string
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Store an email task and publish it to its priority queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		lg, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer func() { _ = lg.Sync() }()

		req, err := enqueueRequest(cmd)
		if err != nil {
			return err
		}

		fs := afero.NewOsFs()
		for _, path := range enqueueFlags.files {
			f, err := fs.Open(path)
			if err != nil {
				return fmt.Errorf("open attachment: %w", err)
			}
			defer f.Close()
			req.Files = append(req.Files, queue.Upload{Name: filepath.Base(path), Content: f})
		}

		sqlDB, err := app.OpenDatabase(cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		pub, err := app.Publisher(cfg)
		if err != nil {
			return err
		}
		defer pub.Close()

		svc := queue.New(
			sqlDB,
			repository.NewEmailQueueRepository(sqlDB),
			repository.NewAttachmentsRepository(sqlDB),
			repository.NewEmailTypesRepository(sqlDB),
			attachment.NewStore(fs, cfg.Attachments.UploadDir),
			templates.NewRenderer(fs, cfg.Templates.UserDir, cfg.Templates.DefaultDir, cfg.Templates.Extension),
			pub,
			lg,
		)

		res, err := svc.Enqueue(cmd.Context(), req)
		if err != nil {
			if errors.Is(err, queue.ErrPublish) {
				lg.Warn("task is stored as pending and needs a republish", zap.String("task_id", res.ID))
			}
			return err
		}
		fmt.Printf(">> enqueued id=%s tier=%s attachments=%d\n", res.ID, res.Tier, res.Attachments)
		return nil
	},
}

func init() {
	f := enqueueCmd.Flags()
	f.StringVar(&enqueueFlags.emailType, "type", "", "email type (default recipients come from email_types)")
	f.StringVar(&enqueueFlags.subject, "subject", "", "subject line")
	f.StringVar(&enqueueFlags.template, "template", "", "template name, extension optional")
	f.StringVar(&enqueueFlags.data, "data", "{}", "template data as a JSON object")
	f.IntVar(&enqueueFlags.priority, "priority", 2, "priority level: 1 high, 2 normal, 3+ low")
	f.StringSliceVar(&enqueueFlags.to, "to", nil, "to recipients")
	f.StringSliceVar(&enqueueFlags.cc, "cc", nil, "cc recipients")
	f.StringSliceVar(&enqueueFlags.bcc, "bcc", nil, "bcc recipients")
	f.StringSliceVar(&enqueueFlags.files, "file", nil, "attachment path, repeatable")
	_ = enqueueCmd.MarkFlagRequired("template")
}

// enqueueRequest maps flags to a request. A recipient flag that was not given
// stays nil so the email type default applies.
func enqueueRequest(cmd *cobra.Command) (queue.Request, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(enqueueFlags.data), &data); err != nil {
		return queue.Request{}, fmt.Errorf("--data must be a JSON object: %w", err)
	}

	req := queue.Request{
		EmailType:     enqueueFlags.emailType,
		Subject:       enqueueFlags.subject,
		Template:      enqueueFlags.template,
		Data:          data,
		PriorityLevel: enqueueFlags.priority,
	}
	if cmd.Flags().Changed("to") {
		req.To = nonNil(enqueueFlags.to)
	}
	if cmd.Flags().Changed("cc") {
		req.Cc = nonNil(enqueueFlags.cc)
	}
	if cmd.Flags().Changed("bcc") {
		req.Bcc = nonNil(enqueueFlags.bcc)
	}
	return req, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
