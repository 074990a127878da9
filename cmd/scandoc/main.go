package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/ivanvanderbyl/scandoc"
)

func main() {
	cmd := &cli.Command{
		Name:  "scandoc",
		Usage: "Make scanned documents searchable and editable",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level",
			},
		},
		Commands: []*cli.Command{
			convertCommand(),
			tablesCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger.
func setup(cmd *cli.Command) (scandoc.Config, *logrus.Logger, error) {
	config := scandoc.DefaultConfig()
	if path := cmd.String("config"); path != "" {
		var err error
		config, err = scandoc.LoadConfig(path)
		if err != nil {
			return config, nil, err
		}
	}
	if level := cmd.String("log-level"); level != "" {
		config.Log.Level = level
	}

	logger, err := scandoc.NewLogger(config.Log)
	if err != nil {
		return config, nil, err
	}
	return config, logger, nil
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert an image or PDF into a searchable PDF, DOCX or Markdown",
		ArgsUsage: "<input>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: input name with the format's extension)",
			},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: pdf, docx or md"},
			&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "OCR language"},
			&cli.IntFlag{Name: "dpi", Usage: "Image DPI"},
			&cli.BoolFlag{Name: "deskew", Usage: "Deskew pages before OCR"},
			&cli.BoolFlag{Name: "clean", Usage: "Clean pages before OCR"},
			&cli.BoolFlag{Name: "no-tables", Usage: "Disable table detection"},
			&cli.StringFlag{Name: "table-style", Usage: "Table style: basic, grid, light or fancy"},
			&cli.StringFlag{Name: "table-method", Usage: "Table extraction method: all, geometry, border or heuristic"},
			&cli.StringFlag{Name: "export-tables", Usage: "Also export tables to this directory"},
			&cli.StringFlag{Name: "export-format", Usage: "Table export format: csv or xlsx"},
		},
		Action: runConvert,
	}
}

func runConvert(ctx context.Context, cmd *cli.Command) error {
	input := cmd.Args().First()
	if input == "" {
		return errors.New("missing input file")
	}

	config, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if method := cmd.String("table-method"); method != "" {
		config.Tables.Method = method
	}
	if err := config.Validate(); err != nil {
		return err
	}

	opts := scandoc.DefaultConvertOptions(config)
	if v := cmd.String("format"); v != "" {
		opts.Format, err = scandoc.ParseOutputFormat(v)
		if err != nil {
			return err
		}
	}
	if v := cmd.String("language"); v != "" {
		opts.OCR.Language = v
	}
	if v := cmd.Int("dpi"); v > 0 {
		opts.OCR.DPI = v
	}
	opts.OCR.Deskew = opts.OCR.Deskew || cmd.Bool("deskew")
	opts.OCR.Clean = opts.OCR.Clean || cmd.Bool("clean")
	if cmd.Bool("no-tables") {
		opts.DetectTables = false
	}
	if v := cmd.String("table-style"); v != "" {
		opts.TableStyle = scandoc.ParseTableStyle(v)
	}
	if v := cmd.String("export-format"); v != "" {
		opts.ExportFormat = scandoc.ExportFormat(v)
	}
	opts.ExportDir = cmd.String("export-tables")

	output := cmd.String("output")
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + opts.Format.Extension()
		if output == input {
			output = strings.TrimSuffix(input, filepath.Ext(input)) + "_searchable" + opts.Format.Extension()
		}
	}

	pool, err := scandoc.NewPdfiumPool(2)
	if err != nil {
		return err
	}
	defer pool.Close()

	converter := scandoc.NewConverterWithConfig(pool, config, logger)
	result, err := converter.Convert(ctx, scandoc.ConvertRequest{
		InputPath:  input,
		OutputPath: output,
		Options:    opts,
		Progress: func(percent int, message string) {
			logger.WithField("progress", percent).Info(message)
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Written %s (%d tables)\n", result.OutputPath, len(result.Tables))
	for _, path := range result.Exported {
		fmt.Fprintf(os.Stderr, "Exported table to %s\n", path)
	}
	return nil
}

func tablesCommand() *cli.Command {
	return &cli.Command{
		Name:      "tables",
		Usage:     "Detect the tables of a searchable PDF",
		ArgsUsage: "<input.pdf>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "method", Usage: "Extraction method: all, geometry, border or heuristic"},
			&cli.StringFlag{Name: "export", Usage: "Export directory (default: print Markdown to stdout)"},
			&cli.StringFlag{Name: "export-format", Value: "csv", Usage: "Export format: csv or xlsx"},
		},
		Action: runTables,
	}
}

func runTables(ctx context.Context, cmd *cli.Command) error {
	input := cmd.Args().First()
	if input == "" {
		return errors.New("missing input file")
	}

	config, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if method := cmd.String("method"); method != "" {
		config.Tables.Method = method
	}
	if err := config.Validate(); err != nil {
		return err
	}

	pages, err := scandoc.PageCount(input)
	if err != nil {
		return err
	}

	pool, err := scandoc.NewPdfiumPool(3)
	if err != nil {
		return err
	}
	defer pool.Close()

	extractor := scandoc.NewStandardTableExtractor(pool, config.Tables, logger)
	tables, err := extractor.ExtractAll(ctx, input, pages)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Found %d tables on %d pages\n", len(tables), pages)

	if dir := cmd.String("export"); dir != "" {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		written, err := scandoc.ExportTables(tables, dir, base, scandoc.ExportFormat(cmd.String("export-format")))
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Fprintf(os.Stderr, "Exported table to %s\n", path)
		}
		return nil
	}

	// Print every table page by page, without surrounding text
	plan := scandoc.RenderPlan{}
	for page := range pages {
		var pageTables []scandoc.ReconciledTable
		for _, t := range tables {
			if t.Page == page {
				pageTables = append(pageTables, t)
			}
		}
		if len(pageTables) > 0 {
			plan.Pages = append(plan.Pages, scandoc.Compose(page, nil, pageTables, nil))
		}
	}
	return scandoc.MarkdownEmitter{}.Emit(ctx, plan, scandoc.StyleGrid, os.Stdout)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP conversion service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address"},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	config, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		config.Server.Addr = addr
	}

	pool, err := scandoc.NewPdfiumPool(4)
	if err != nil {
		return err
	}
	defer pool.Close()

	converter := scandoc.NewConverterWithConfig(pool, config, logger)
	jobs, err := scandoc.NewJobManager(converter, config.Server, logger)
	if err != nil {
		return err
	}
	defer jobs.Close()

	srv := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           scandoc.NewHTTPHandler(jobs, config.Server.MaxUploadBytes, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := jobs.Sweep(now); n > 0 {
					logger.WithField("removed", n).Info("expired jobs swept")
				}
			}
		}
	}()

	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", config.Server.Addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
