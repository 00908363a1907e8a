package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
	"github.com/henrymedina447/sbs-suptech-etl-v2/pkg/logger"
	"github.com/henrymedina447/sbs-suptech-etl-v2/service"
)

var scanFlags struct {
	docType   string
	sessionID string
	parentID  string
	dryRun    bool
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Process every stored source document of a type",
	Long: "scan lists the source bucket under the prefix of --type, builds one\n" +
		"document per file and processes them as a single batch.",
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringVar(&scanFlags.docType, "type", "", "Document type: POLICY, REGISTRATION or APPRAISAL (required)")
	f.StringVar(&scanFlags.sessionID, "session", "", "Session id attached to the documents (default: new uuid)")
	f.StringVar(&scanFlags.parentID, "parent", "", "Parent id attached to the documents")
	f.BoolVar(&scanFlags.dryRun, "dry-run", false, "Print the documents found without processing them")

	_ = scanCmd.MarkFlagRequired("type")
}

func runScan(cmd *cobra.Command, _ []string) error {
	docType, err := model.ParseDocumentType(scanFlags.docType)
	if err != nil {
		return err
	}
	sessionID := scanFlags.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	cfg := loaded()
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := logger.With(cmd.Context(), logger.SessionIDKey, sessionID)
	poller := service.NewDocumentPoller(a.minio, cfg.Pipeline.SourceExtension)
	docs, err := poller.Scan(ctx, docType, service.ScanOptions{SessionID: sessionID, ParentID: scanFlags.parentID})
	if err != nil {
		return err
	}
	if scanFlags.dryRun {
		return printJSON(cmd, docs)
	}

	results := a.orchestrator.RunBatches(ctx, []model.Batch{{DocumentType: docType, Documents: docs}})
	if err := printJSON(cmd, results); err != nil {
		return err
	}
	return batchErrors(results)
}
