package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/app"
	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/ingest"
	"github.com/JakeFAU/collection-ingest/internal/mapping"
	"github.com/JakeFAU/collection-ingest/internal/progress"
)

// ingestOptions are the parsed flags of the ingest command.
type ingestOptions struct {
	CollectionID int64
	File         string
	ApplyMapping bool
	MappingFile  string
	Out          string
}

// IngestAction streams one CSV through the orchestrator.
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	rt, err := bootstrap(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	defer rt.close()

	summary, err := runIngest(ctx, rt.app, ingestOptions{
		CollectionID: cmd.Int64("collection"),
		File:         cmd.String("file"),
		ApplyMapping: cmd.Bool("apply-mapping"),
		MappingFile:  cmd.String("mapping"),
		Out:          cmd.String("out"),
	}, cmd.Root().Writer, rt.logger)
	if err != nil {
		return err
	}
	if summary.Cancelled {
		return fmt.Errorf("job %s cancelled", summary.JobID)
	}
	return nil
}

func runIngest(ctx context.Context, a *app.App, opts ingestOptions, out io.Writer, logger *zap.Logger) (ingest.Summary, error) {
	f, err := os.Open(opts.File)
	if err != nil {
		return ingest.Summary{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	rows, err := ingest.ParseCSV(f)
	if err != nil {
		return ingest.Summary{}, err
	}

	if a.Memory != nil {
		// Without a database the target collection only lives for this run.
		a.Memory.AddCollection(catalog.Collection{ID: opts.CollectionID, Name: fmt.Sprintf("collection-%d", opts.CollectionID)})
	}

	fm, err := resolveMapping(ctx, a, opts)
	if err != nil {
		return ingest.Summary{}, err
	}

	jobID, err := a.IDs().NewID()
	if err != nil {
		return ingest.Summary{}, fmt.Errorf("generate job id: %w", err)
	}

	lines := &jsonLines{enc: json.NewEncoder(out)}
	summary := a.Orchestrator.Run(ctx, ingest.Job{
		ID:           jobID,
		CollectionID: opts.CollectionID,
		Rows:         rows,
		Mapping:      fm,
	}, progress.Multi(lines, a.Hub))
	if lines.err != nil {
		logger.Warn("writing progress failed", zap.Error(lines.err))
	}

	if summary.Blocked && summary.DownloadToken != "" {
		if err := writeRemaining(a, summary.DownloadToken, opts.Out); err != nil {
			return summary, err
		}
		logger.Info("remaining rows written",
			zap.String("path", opts.Out),
			zap.Int("remaining", summary.RemainingCount),
		)
	}
	return summary, nil
}

func resolveMapping(ctx context.Context, a *app.App, opts ingestOptions) (*catalog.FieldMapping, error) {
	if opts.MappingFile != "" {
		raw, err := os.ReadFile(opts.MappingFile)
		if err != nil {
			return nil, fmt.Errorf("read mapping file: %w", err)
		}
		fm, err := mapping.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode mapping file: %w", err)
		}
		return fm, nil
	}
	return a.Service.ResolveMapping(ctx, opts.CollectionID, opts.ApplyMapping)
}

func writeRemaining(a *app.App, token, path string) error {
	csvText, err := a.Exports.Take(token)
	if err != nil {
		return fmt.Errorf("take remaining rows: %w", err)
	}
	if err := os.WriteFile(path, []byte(csvText), 0o644); err != nil {
		return fmt.Errorf("write remaining rows: %w", err)
	}
	return nil
}

// jsonLines writes each event as one JSON document per line. The first write
// error is kept and later events are dropped.
type jsonLines struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

func (j *jsonLines) Emit(evt progress.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	j.err = j.enc.Encode(evt)
}
