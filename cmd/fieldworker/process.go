package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/docfields/hybriddetect/internal/config"
	"github.com/docfields/hybriddetect/internal/pipeline"
	"github.com/docfields/hybriddetect/internal/storage"
	"github.com/docfields/hybriddetect/internal/store"
	"github.com/docfields/hybriddetect/internal/worker"
)

func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <document_id>",
		Short: "Run the detection pipeline against one document and persist its fields",
		Args:  cobra.ExactArgs(1),
		RunE:  runProcess,
	}
	cmd.Flags().BoolVar(&flagForce, "force", false, "reprocess even if the document is not in a processable status")
	cmd.Flags().BoolVar(&flagNoVision, "no-vision", false, "disable the vision detector for this run")
	cmd.Flags().StringVar(&flagVisionProvider, "vision-provider", "", "override the configured vision provider (openai|gemini)")
	cmd.Flags().BoolVar(&flagDebug, "debug", false, "enable verbose logging")
	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	documentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("malformed document id: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Debug = cfg.Debug || flagDebug
	if err := applyVisionFlags(cfg, flagNoVision, flagVisionProvider); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	st, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	blobs, err := storage.NewLocalBlobs(cfg.StorageDir)
	if err != nil {
		return err
	}

	pl, err := pipeline.New(cfg, sugar)
	if err != nil {
		return err
	}
	defer pl.Close()

	w := worker.New(st, blobs, pl, sugar)

	doc, fieldsFound, err := w.Process(cmd.Context(), documentID, flagForce)
	if err != nil {
		sugar.Errorw("processing failed", "document_id", documentID, "error", err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "document %s status=%s fields_found=%d page_count=%d acroform=%t\n",
		doc.ID, doc.Status, fieldsFound, doc.PageCount, doc.Acroform)
	return nil
}
