package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"

	"resume-compiler/internal/domain"
	"resume-compiler/internal/usecase"
)

var chromeCandidates = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// ChromedpEngine prints HTML markup to PDF with headless Chrome. HTML has no
// cross references to settle, so one pass is enough.
type ChromedpEngine struct {
	chromePath string
	stylesheet string
	log        *slog.Logger
}

// NewChromedpEngine uses chromePath when set, otherwise the first browser
// found on PATH. stylesheet, if it exists, is copied next to the markup as
// style.css.
func NewChromedpEngine(chromePath, stylesheet string, log *slog.Logger) *ChromedpEngine {
	if log == nil {
		log = slog.Default()
	}
	return &ChromedpEngine{chromePath: chromePath, stylesheet: stylesheet, log: log}
}

func (r *ChromedpEngine) Name() string { return "html" }

func (r *ChromedpEngine) Passes() int { return 1 }

func (r *ChromedpEngine) Files() usecase.EngineFiles {
	return usecase.EngineFiles{
		Source:      "index.html",
		Output:      "resume.pdf",
		Signature:   "%PDF",
		ContentType: "application/pdf",
		Filename:    "resume.pdf",
	}
}

func (r *ChromedpEngine) browser() (string, error) {
	if r.chromePath != "" {
		p, err := execLookPath(r.chromePath)
		if err != nil {
			return "", domain.NewError(domain.KindServiceUnavailable,
				"the PDF renderer is not available", errors.Wrapf(err, "CHROME_PATH %s", r.chromePath))
		}
		return p, nil
	}
	for _, c := range chromeCandidates {
		if p, err := execLookPath(c); err == nil {
			return p, nil
		}
	}
	return "", domain.NewError(domain.KindServiceUnavailable,
		"the PDF renderer is not available", errors.Newf("none of %v found on PATH", chromeCandidates))
}

func (r *ChromedpEngine) Run(ctx context.Context, workspace string, _ int) (usecase.PassResult, error) {
	exe, err := r.browser()
	if err != nil {
		return usecase.PassResult{}, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(exe),
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserDataDir(filepath.Join(workspace, ".chrome")),
	)

	// Cancelling the allocator kills the browser and its helper processes.
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()
	cctx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	if r.stylesheet != "" {
		if b, err := os.ReadFile(r.stylesheet); err == nil {
			_ = os.WriteFile(filepath.Join(workspace, "style.css"), b, 0o600)
		}
	}

	files := r.Files()
	var pdfBuf []byte
	err = chromedp.Run(cctx,
		chromedp.Navigate("file://"+filepath.ToSlash(filepath.Join(workspace, files.Source))),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			// A4: 210mm x 297mm -> inches: 8.27 x 11.69
			pdfBuf, _, err = page.PrintToPDF().WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if ctx.Err() != nil {
		return usecase.PassResult{}, errors.Wrap(ctx.Err(), "chrome render killed")
	}
	if err != nil {
		r.log.Debug("chrome render failed", "workspace", workspace, "error", err)
		return usecase.PassResult{ExitCode: 1, Stderr: fmt.Sprintf("render failed: %v", err)}, nil
	}
	if err := os.WriteFile(filepath.Join(workspace, files.Output), pdfBuf, 0o600); err != nil {
		return usecase.PassResult{}, errors.Wrap(err, "write rendered pdf")
	}
	return usecase.PassResult{}, nil
}

func (r *ChromedpEngine) Check(context.Context) error {
	_, err := r.browser()
	return err
}
